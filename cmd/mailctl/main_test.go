package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/service"
)

func TestPrintPreview(t *testing.T) {
	rows := service.Preview("Hello {name}", []model.Row{
		{"email": "a@x.com", "name": "Ana"},
		{"email": "b@x.com"},
		{"name": "Nobody"},
	})

	var buf bytes.Buffer
	require.NoError(t, printPreview(&buf, rows, false))
	out := buf.String()
	require.Contains(t, out, "#1 a@x.com [ok]\nHello Ana")
	require.Contains(t, out, "#2 b@x.com [fallback missing=name]\nHello {name}")
	require.Contains(t, out, "#3 (no email) [ok]")
	require.Contains(t, out, "3 rows, 1 fallback")

	buf.Reset()
	require.NoError(t, printPreview(&buf, rows, true))
	require.NotContains(t, buf.String(), "a@x.com")
	require.Contains(t, buf.String(), "b@x.com")
}
