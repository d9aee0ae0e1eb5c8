package smtp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

func render(t *testing.T, msg harvest.Message) string {
	t.Helper()
	m, err := buildMessage("vendas@harvester.dev", "sales@acme.com", msg)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildMessageBodies(t *testing.T) {
	t.Parallel()

	t.Run("text only", func(t *testing.T) {
		t.Parallel()
		out := render(t, harvest.Message{Subject: "Proposta", Text: "Ola"})
		require.Contains(t, out, "Subject: Proposta")
		require.Contains(t, out, "text/plain")
		require.NotContains(t, out, "text/html")
		require.Contains(t, out, "<sales@acme.com>")
	})

	t.Run("html only", func(t *testing.T) {
		t.Parallel()
		out := render(t, harvest.Message{Subject: "Proposta", HTML: "<p>Ola</p>"})
		require.Contains(t, out, "text/html")
		require.NotContains(t, out, "text/plain")
	})

	t.Run("both", func(t *testing.T) {
		t.Parallel()
		out := render(t, harvest.Message{Subject: "Proposta", Text: "Ola", HTML: "<p>Ola</p>"})
		require.Contains(t, out, "multipart/alternative")
		require.Contains(t, out, "text/plain")
		require.Contains(t, out, "text/html")
	})

	t.Run("attachment", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "catalogo.txt")
		require.NoError(t, os.WriteFile(path, []byte("itens"), 0o600))
		out := render(t, harvest.Message{
			Subject:     "Proposta",
			Text:        "Ola",
			Attachments: []harvest.Attachment{{Filename: "catalogo-2026.txt", Path: path}},
		})
		require.Contains(t, out, "catalogo-2026.txt")
	})
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	t.Parallel()

	_, err := buildMessage("vendas@harvester.dev", "not an address", harvest.Message{Subject: "s", Text: "t"})
	require.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{From: "a@b.com"}, nil)
	require.ErrorIs(t, err, harvest.ErrInitialization)

	_, err = New(Config{Host: "smtp.example.com"}, nil)
	require.ErrorIs(t, err, harvest.ErrInitialization)

	s, err := New(Config{Host: "smtp.example.com", From: "a@b.com"}, nil)
	require.NoError(t, err)
	require.Equal(t, defaultPort, s.cfg.Port)
}

func TestVerifyFailsWithoutRelay(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Host: "127.0.0.1", Port: 1, From: "a@b.com"}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, s.Verify(ctx))
}
