package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipientCSV_HeaderAnyOrderAnyCase(t *testing.T) {
	csv := "subject,EMAIL,Message\nOi,a@example.com,corpo a\nOi,b@example.com,corpo b\n"

	reqs, err := parseRecipientCSV(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, emailRequest{To: "a@example.com", Subject: "Oi", Message: "corpo a"}, reqs[0])
}

func TestParseRecipientCSV_SkipsMalformedAndEmptyEmailRows(t *testing.T) {
	csv := "Email,Subject,Message\n" +
		"a@example.com,Oi,corpo\n" +
		",Oi,sem email\n" +
		"b@example.com,Oi,corpo\n"

	reqs, err := parseRecipientCSV(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "b@example.com", reqs[1].To)
}

func TestParseRecipientCSV_MissingColumnRejected(t *testing.T) {
	csv := "Email,Subject\na@example.com,Oi\n"

	_, err := parseRecipientCSV(strings.NewReader(csv), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Message")
}

func TestParseRecipientCSV_RowLimitApplied(t *testing.T) {
	var b strings.Builder
	b.WriteString("Email,Subject,Message\n")
	for i := 0; i < 10; i++ {
		b.WriteString("user@example.com,Oi,corpo\n")
	}

	reqs, err := parseRecipientCSV(strings.NewReader(b.String()), 5)
	require.NoError(t, err)
	assert.Len(t, reqs, 5)
}

func TestParseRecipientCSV_NoDataRowsRejected(t *testing.T) {
	_, err := parseRecipientCSV(strings.NewReader("Email,Subject,Message\n"), 0)
	assert.Error(t, err)
}
