package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVRows_HeaderOrderIndependent(t *testing.T) {
	raw := []byte("ISBN,Title,Author\n9780439708180,Harry Potter,J.K. Rowling\n")
	rows, err := parseCSVRows(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Harry Potter", rows[0].Title)
	assert.Equal(t, "J.K. Rowling", rows[0].Author)
	assert.Equal(t, "9780439708180", rows[0].ISBN)
}

func TestParseCSVRows_SkipsRowsMissingTitleAndISBN(t *testing.T) {
	raw := []byte("title,author,isbn\nDune,Frank Herbert,\n,Anonymous,\nFoundation,Asimov,0553293354\n")
	rows, err := parseCSVRows(raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dune", rows[0].Title)
	assert.Equal(t, "Foundation", rows[1].Title)
}

func TestParseCSVRows_RequiresTitleOrISBNColumn(t *testing.T) {
	raw := []byte("author\nFrank Herbert\n")
	_, err := parseCSVRows(raw)
	assert.Error(t, err)
}

func TestParseCSVRows_EmptyBody(t *testing.T) {
	raw := []byte("title,author,isbn\n")
	rows, err := parseCSVRows(raw)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
