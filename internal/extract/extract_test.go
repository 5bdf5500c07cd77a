package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTitleAndLinks(t *testing.T) {
	t.Parallel()

	body := []byte(`<!doctype html>
<html><head><title>
   The Project
</title></head>
<body>
  <a href="/a">A</a>
  <a href="http://other.test/b">B</a>
  <a href="//cdn.test/x">CDN</a>
  <a href="(null)">missing</a>
  <a href="">empty</a>
  <a>no href</a>
  <a href="mailto:someone@example.test">mail</a>
  <a href="c.html#part">C</a>
</body></html>`)

	content, err := New().Extract(body, "https://example.test/dir/index.html")
	require.NoError(t, err)
	require.Equal(t, "The Project", content.Title)
	require.Equal(t, []string{
		"https://example.test/a",
		"http://other.test/b",
		"https://cdn.test/x",
		"https://example.test/dir/c.html",
	}, content.Links)
}

func TestExtractHonoursBaseElement(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><base href="http://example.test/docs/"></head>
<body><a href="intro.html">intro</a></body></html>`)

	content, err := New().Extract(body, "http://example.test/")
	require.NoError(t, err)
	require.Empty(t, content.Title)
	require.Equal(t, []string{"http://example.test/docs/intro.html"}, content.Links)
}

func TestExtractToleratesEmptyAndMalformedDocuments(t *testing.T) {
	t.Parallel()

	content, err := New().Extract(nil, "http://example.test/")
	require.NoError(t, err)
	require.Empty(t, content.Title)
	require.Empty(t, content.Links)

	content, err = New().Extract([]byte(`<html><title>Broken<a href="/x">`), "http://example.test/")
	require.NoError(t, err)
	require.Empty(t, content.Links, "an unterminated title swallows the rest of the document as text")
}

func TestExtractKeepsFirstTitleOnly(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>First</title></head><body><svg><title>Icon</title></svg></body></html>`)
	content, err := New().Extract(body, "http://example.test/")
	require.NoError(t, err)
	require.Equal(t, "First", content.Title)
}
