package media

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolver turns stored image references into absolute URLs. References are
// either absolute URLs or Cloudinary public ids.
type Resolver struct {
	CloudName string
	Folder    string
	Default   string
}

// Transformations applied per image kind.
const (
	Avatar = "c_fill,g_face,w_256,h_256"
	Banner = "c_fill,w_1200,h_400"
)

// New creates a resolver. Without a cloud name, public ids cannot be
// resolved and fall back to def.
func New(cloudName, folder, def string) *Resolver {
	return &Resolver{CloudName: cloudName, Folder: strings.Trim(folder, "/"), Default: def}
}

// URL resolves ref with the given transformation.
func (r *Resolver) URL(ref, transformation string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return r.Default
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref
	}
	if r.CloudName == "" {
		return r.Default
	}
	publicID := strings.TrimLeft(ref, "/")
	if r.Folder != "" && !strings.HasPrefix(publicID, r.Folder+"/") {
		publicID = r.Folder + "/" + publicID
	}
	if transformation == "" {
		return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s", r.CloudName, publicID)
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s/%s", r.CloudName, transformation, publicID)
}

// Avatar resolves a person's picture.
func (r *Resolver) Avatar(ref string) string { return r.URL(ref, Avatar) }

// Banner resolves a halaqah or course cover image.
func (r *Resolver) Banner(ref string) string { return r.URL(ref, Banner) }
