package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestCompanyName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"sales@acme.com":         "Acme",
		"contato@padaria.com.br": "Padaria",
		"x@Globex.io":            "Globex",
		"broken":                 "",
		"trailing@":              "",
	}
	for email, want := range cases {
		require.Equal(t, want, CompanyName(email), email)
	}
}

func TestNewContactNormalizes(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewContact("  Sales@ACME.com ", "https://acme.com", "acme", fixedClock(now))
	require.Equal(t, "sales@acme.com", c.Email)
	require.Equal(t, "Acme", c.Name)
	require.Equal(t, now, c.CollectedAt)
	require.Equal(t, StatusPending, c.Status())

	sent := now.Add(time.Hour)
	c.SentAt = &sent
	require.Equal(t, StatusSent, c.Status())
}

func TestDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "acme.com", Domain("a@ACME.com"))
	require.Empty(t, Domain("nope"))
}

func TestFilterContacts(t *testing.T) {
	t.Parallel()

	contacts := []Contact{
		{Email: "a@acme.com", Keyword: "Padaria em Curitiba"},
		{Email: "b@beta.com", Keyword: "oficina mecânica Brasil"},
		{Email: "c@gamma.com", Keyword: "padaria artesanal Brasil"},
	}

	require.Len(t, FilterContacts(contacts, "", nil), 3)

	got := FilterContacts(contacts, "PADARIA", nil)
	require.Len(t, got, 2)
	require.Equal(t, "a@acme.com", got[0].Email)
	require.Equal(t, "c@gamma.com", got[1].Email)

	got = FilterContacts(contacts, "padaria", []string{" C@Gamma.com "})
	require.Len(t, got, 1)
	require.Equal(t, "c@gamma.com", got[0].Email)

	require.Empty(t, FilterContacts(contacts, "farmácia", nil))
}
