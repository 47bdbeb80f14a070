package web

// pageTemplate renders the chat transcript and the input form. Messages are
// shown as plain text with preserved line breaks.
const pageTemplate = `<!DOCTYPE html>
<html lang="sl">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pametni chatbot</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #fafafa; }
        .block-container { max-width: 760px; margin: 0 auto; padding: 1.2rem 1rem 6rem; }
        .caption { color: #666; font-size: 14px; margin-top: -8px; }
        .chat-message { border-radius: 14px; padding: 6px 10px; margin: 10px 0; white-space: pre-wrap; }
        .chat-message.user { background: #eef3ff; }
        .chat-message.assistant { background: #ffffff; border: 1px solid #eee; }
        .role { font-size: 12px; color: #999; display: block; margin-bottom: 2px; }
        form.chat-input { position: fixed; bottom: 0; left: 0; right: 0; background: #fafafa; padding: 12px; }
        form.chat-input div { max-width: 760px; margin: 0 auto; display: flex; gap: 8px; }
        form.chat-input input[type=text] { flex: 1; padding: 10px; border-radius: 10px; border: 1px solid #ccc; }
        button { padding: 8px 14px; border-radius: 10px; border: none; background: #ff4b4b; color: white; cursor: pointer; }
        .reset { background: #999; }
    </style>
</head>
<body>
<div class="block-container">
    <h1>💬 Pametni chatbot</h1>
    <p class="caption">Odgovarjam izključno v slovenščini in samo o določeni temi (specializacija): {{.Topic}}</p>
    {{range .History}}
    <div class="chat-message {{.Role}}"><span class="role">{{if eq .Role "user"}}🧑 Ti{{else}}🤖 Pomočnik{{end}}</span>{{.Content}}</div>
    {{end}}
    <form method="post" action="/api/reset"><button class="reset" type="submit">Nova seja</button></form>
</div>
<form class="chat-input" method="post" action="/">
    <div>
        <input type="text" name="message" placeholder="Napiši vprašanje…" autofocus autocomplete="off">
        <button type="submit">Pošlji</button>
    </div>
</form>
</body>
</html>
`
