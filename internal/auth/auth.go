package auth

// Service is the Telegram allowlist. An empty allowlist admits everyone.
type Service struct {
	allowed map[int64]struct{}
}

func New(initial []int64) *Service {
	s := &Service{allowed: make(map[int64]struct{}, len(initial))}
	for _, id := range initial {
		s.allowed[id] = struct{}{}
	}
	return s
}

func (s *Service) IsAllowed(userID int64) bool {
	if s == nil || len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[userID]
	return ok
}

func (s *Service) Len() int {
	if s == nil {
		return 0
	}
	return len(s.allowed)
}
