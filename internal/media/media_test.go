package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver(t *testing.T) {
	r := New("tahfeez", "/school/", "https://example.com/default-image.jpg")

	assert.Equal(t, "https://example.com/default-image.jpg", r.Avatar(""))
	assert.Equal(t, "https://cdn.example.com/a.png", r.Avatar("https://cdn.example.com/a.png"))
	assert.Equal(t, "https://res.cloudinary.com/tahfeez/image/upload/c_fill,g_face,w_256,h_256/school/students/abdullah", r.Avatar("students/abdullah"))
	assert.Equal(t, "https://res.cloudinary.com/tahfeez/image/upload/c_fill,w_1200,h_400/school/halaqat/summer", r.Banner("school/halaqat/summer"))
	assert.Equal(t, "https://res.cloudinary.com/tahfeez/image/upload/school/x", r.URL("x", ""))
}

func TestResolverWithoutCloud(t *testing.T) {
	r := New("", "", "/default.png")
	assert.Equal(t, "/default.png", r.Avatar("students/abdullah"))
	assert.Equal(t, "http://host/p.jpg", r.Avatar("http://host/p.jpg"))
}
