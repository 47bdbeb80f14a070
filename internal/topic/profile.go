package topic

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultModel = "llama-3.1-70b-versatile"

var ErrUnknownProfile = errors.New("unknown bot profile")

// Config describes one deployed assistant. It is never mutated after load.
type Config struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Keywords        []string `yaml:"keywords"`
	Refusal         string   `yaml:"refusal"`
	SystemDirective string   `yaml:"system_directive"`
	DefaultModel    string   `yaml:"default_model"`
}

const supportDescription = "tehnična podpora za spletno stran (npr. pomoč pri uporabi strani, pogosta vprašanja, navigacija, težave z dostopom)"

const bootsDescription = "nogometni čevlji oziroma kopačke (npr. izbira modela, velikosti, podplata za podlago, materiali, nega in znamke)"

var profiles = map[string]Config{
	"support": {
		Name:        "support",
		Description: supportDescription,
		Keywords: []string{
			"spletna stran", "stran", "prijava", "registracija", "geslo", "konto",
			"izdelek", "nakup", "košarica", "plačilo", "kontakt", "podpora",
			"napaka", "ne dela", "ne odpira", "povezava", "url", "widget",
		},
		Refusal: RefusalFor(supportDescription,
			"Če želiš, opiši težavo na strani (kaj klikneš, kaj pričakuješ in kaj se zgodi), pa ti poskusim pomagati."),
		SystemDirective: DirectiveFor(supportDescription),
		DefaultModel:    DefaultModel,
	},
	"boots": {
		Name:        "boots",
		Description: bootsDescription,
		Keywords: []string{
			"kopačk", "kopack", "čevelj", "čevlj", "nogomet", "podplat", "čepki",
			"umetna trava", "trava", "dvorana",
			"nike", "adidas", "puma", "mizuno", "new balance",
			"mercurial", "phantom", "predator", "copa", "future",
			"velikost", "številka", "usnje", "sintetik", "nega",
		},
		Refusal: RefusalFor(bootsDescription,
			"Če želiš, mi povej, na kakšni podlagi igraš, katero številko nosiš in kakšen proračun imaš, pa ti pomagam izbrati kopačke."),
		SystemDirective: DirectiveFor(bootsDescription),
		DefaultModel:    DefaultModel,
	},
}

// RefusalFor renders the canned off-topic reply for a topic.
func RefusalFor(description, hint string) string {
	return "Oprostite, za to področje nimam informacij. 🙏\n\n" +
		fmt.Sprintf("Pomagam lahko samo v okviru teme: **%s**.\n\n", description) +
		hint
}

// DirectiveFor renders the system message that seeds every conversation.
func DirectiveFor(description string) string {
	return "Ti si prijazen pomočnik (chatbot). " +
		"Odgovarjaj IZKLJUČNO v slovenščini, slovnično pravilno in pregledno. " +
		fmt.Sprintf("Tvoja specializacija je: %s. ", description) +
		"Če uporabnik vpraša nekaj izven specializacije, vljudno zavrni in usmeri nazaj na temo. " +
		"Odgovori naj bodo kratki, jasni, po potrebi z alinejami."
}

// Profile returns a copy of a built-in profile.
func Profile(name string) (Config, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProfile, name, strings.Join(ProfileNames(), ", "))
	}
	p.Keywords = append([]string(nil), p.Keywords...)
	return p, nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a profile from YAML. Refusal, directive and model fall back
// to the standard wording when left empty.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.Description) == "" {
		return Config{}, fmt.Errorf("%s: description is required", path)
	}
	if len(cfg.Keywords) == 0 {
		return Config{}, fmt.Errorf("%s: at least one keyword is required", path)
	}
	if cfg.Name == "" {
		cfg.Name = "custom"
	}
	if cfg.Refusal == "" {
		cfg.Refusal = RefusalFor(cfg.Description, "Prosim, zastavi vprašanje v okviru te teme.")
	}
	if cfg.SystemDirective == "" {
		cfg.SystemDirective = DirectiveFor(cfg.Description)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	return cfg, nil
}

// Resolve picks the profile file when one is configured, the named built-in
// profile otherwise.
func Resolve(name, path string) (Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	return Profile(name)
}

// Model returns override when set, the profile default otherwise.
func (c Config) Model(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return c.DefaultModel
}

func (c Config) Gate() Gate {
	return NewGate(c.Keywords)
}
