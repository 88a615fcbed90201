package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"coopsweep/internal/viewmodel"
	"coopsweep/views/components"
)

func head(w io.Writer, title string) error {
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="stylesheet" href="/static/style.css">
</head>
`, templ.EscapeString(title))
	return err
}

func sizeFields(w io.Writer, width, height, mines, maxDim int) error {
	_, err := fmt.Fprintf(w, `<label>Width <input id="board-width" type="number" name="width" min="1" max="%[4]d" value="%[1]d"></label>
<label>Height <input id="board-height" type="number" name="height" min="1" max="%[4]d" value="%[2]d"></label>
<label>Mines <input id="num-mines" type="number" name="mines" min="0" value="%[3]d"></label>
`, width, height, mines, maxDim)
	return err
}

// HomePage renders the create-room form.
func HomePage(data viewmodel.HomePage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := head(w, data.Title); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<body>
<main class="home">
<h1>%s</h1>
<p>Start a board and share the link. Everyone in the room plays the same board.</p>
<form method="POST" action="/rooms" class="new-room">
`, templ.EscapeString(data.Title)); err != nil {
			return err
		}
		if err := sizeFields(w, data.Width, data.Height, data.Mines, data.MaxDim); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">Create room</button>
</form>
</main>
</body>
</html>
`)
		return err
	})
}

// RoomPage renders a room with its board, cursor overlay and new-game form.
func RoomPage(data viewmodel.RoomPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := head(w, data.Title); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<body data-room="%s" data-peer="%s">
<header class="room-header">
<h1>%s</h1>
<p class="invite">Invite: <a href="%s">%s</a></p>
<img class="qr" src="%s" alt="Room QR code" width="160" height="160">
</header>
<section id="board">
`, templ.EscapeString(data.RoomID), templ.EscapeString(data.PeerID), templ.EscapeString(data.Title),
			templ.EscapeString(data.InviteURL), templ.EscapeString(data.InviteURL), templ.EscapeString(data.QRURL)); err != nil {
			return err
		}
		if err := components.BoardFragment(data.Board).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</section>\n<section id=\"cursors\">\n"); err != nil {
			return err
		}
		if err := components.CursorsFragment(data.Cursors).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "</section>\n<form id=\"new-game\" method=\"POST\" action=\"/room/%s/new\">\n", templ.EscapeString(data.RoomID)); err != nil {
			return err
		}
		if err := sizeFields(w, data.Width, data.Height, data.Mines, data.MaxDim); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">New game</button>
</form>
<script src="/static/app.js"></script>
</body>
</html>
`)
		return err
	})
}
