package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/distill/internal/models"
	"github.com/xhad/distill/internal/types"
	"github.com/xhad/distill/pkg/source"
)

var _ types.DocumentSource = (*source.Source)(nil)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSource_LoadPlainText(t *testing.T) {
	s := source.New()
	path := writeFile(t, "doc.txt", "The first clause.   Lots   of  spaces.\nA second line here.")

	doc, err := s.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "The first clause. Lots of spaces.\nA second line here.", doc.Content)
	assert.Equal(t, "doc.txt", doc.Title)
	assert.NotEmpty(t, doc.ID)
	assert.True(t, source.Usable(doc))
}

func TestSource_LoadHTML(t *testing.T) {
	s := source.New()
	html := `<html><head><title>Lease Terms</title><style>p{color:red}</style></head>
<body><nav>Menu items</nav><main><p>The tenant shall pay rent monthly.</p>
<p>Notices may be sent by mail.</p></main><footer>Copyright</footer></body></html>`
	path := writeFile(t, "doc.html", html)

	doc, err := s.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Lease Terms", doc.Title)
	assert.Contains(t, doc.Content, "The tenant shall pay rent monthly.")
	assert.Contains(t, doc.Content, "Notices may be sent by mail.")
	assert.NotContains(t, doc.Content, "Menu items")
	assert.NotContains(t, doc.Content, "Copyright")
	assert.NotContains(t, doc.Content, "color:red")
}

func TestSource_LoadMissingFile(t *testing.T) {
	s := source.New()
	_, err := s.Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestUsable(t *testing.T) {
	assert.False(t, source.Usable(nil))
	assert.False(t, source.Usable(&models.Document{Content: "   tiny   "}))
	assert.True(t, source.Usable(&models.Document{Content: "long enough to be worth processing"}))
}
