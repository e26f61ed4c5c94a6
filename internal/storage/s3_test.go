package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPath(t *testing.T) {
	t.Run("with sub-collection", func(t *testing.T) {
		assert.Equal(t, "group-1/sub-2/report.pdf", ObjectPath("group-1", "sub-2", "report.pdf"))
	})

	t.Run("without sub-collection", func(t *testing.T) {
		assert.Equal(t, "group-1/report.pdf", ObjectPath("group-1", "", "report.pdf"))
	})

	t.Run("processed artifact name", func(t *testing.T) {
		assert.Equal(t, "group-1/sub-2/doc-9_processed.md", ObjectPath("group-1", "sub-2", "doc-9_processed.md"))
	})
}
