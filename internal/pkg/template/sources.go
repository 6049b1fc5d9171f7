package template

// Inline template sources for every email kind. The HTML bodies follow the
// blog's transactional styling; the text bodies are rendered verbatim and
// wrapped by Render.

const verificationHTML = `<!DOCTYPE html>
<html lang="nn">
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Stadfest e-postadressa di</h2>
  <p>Takk for at du vil abonnere på Ordbok API-utviklingsbloggen! Trykk på knappen nedanfor for å stadfeste e-postadressa di:</p>
  <p style="margin-top:24px">
    <a href="{{.VerificationURL}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Stadfest e-postadressa</a>
  </p>
  <p style="color:#999;font-size:12px">Lenkja er gyldig i 30 minutt. Om du ikkje bad om dette, kan du sjå bort frå denne e-posten.</p>
  <p style="color:#999;font-size:10px;text-align:center">©{{year}} Ordbok API</p>
</div>
</body>
</html>`

const verificationText = `Stadfest e-postadressa di

Takk for at du vil abonnere på Ordbok API-utviklingsbloggen! Opne lenkja nedanfor for å stadfeste e-postadressa di:

{{.VerificationURL}}

Lenkja er gyldig i 30 minutt. Om du ikkje bad om dette, kan du sjå bort frå denne e-posten.
`

const welcomeHTML = `<!DOCTYPE html>
<html lang="nn">
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Velkomen!</h2>
  <p>E-postadressa di er stadfesta. Du får no ein e-post kvar gong det kjem ein ny bloggpost frå Ordbok API.</p>
  <p style="color:#999;font-size:12px">Ønskjer du ikkje fleire e-postar? <a href="{{.UnsubscribeURL}}">Avslutt abonnementet</a>.</p>
  <p style="color:#999;font-size:10px;text-align:center">©{{year}} Ordbok API</p>
</div>
</body>
</html>`

const welcomeText = `Velkomen!

E-postadressa di er stadfesta. Du får no ein e-post kvar gong det kjem ein ny bloggpost frå Ordbok API.

Ønskjer du ikkje fleire e-postar? Avslutt abonnementet her:

{{.UnsubscribeURL}}
`

const newPostHTML = `<!DOCTYPE html>
<html lang="nn">
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <p style="font-size:14px;color:#666">Ny bloggpost frå Ordbok API:</p>
  <h1 style="font-size:20px;color:#333">{{.Title}}</h1>
  <p>{{.Summary}}</p>
  <p style="margin-top:24px">
    <a href="{{.URL}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Les heile innlegget</a>
  </p>
  <p style="color:#999;font-size:12px"><a href="{{.UnsubscribeURL}}">Avslutt abonnementet</a></p>
  <p style="color:#999;font-size:10px;text-align:center">©{{year}} Ordbok API</p>
</div>
</body>
</html>`

const newPostText = `Ny bloggpost frå Ordbok API: {{.Title}}

{{.Summary}}

Les heile innlegget: {{.URL}}

Avslutt abonnementet: {{.UnsubscribeURL}}
`
