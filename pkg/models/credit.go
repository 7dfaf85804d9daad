package models

// Author role constants for ComicInfo.xml creator types.
const (
	AuthorRoleWriter      = "writer"
	AuthorRolePenciller   = "penciller"
	AuthorRoleInker       = "inker"
	AuthorRoleColorist    = "colorist"
	AuthorRoleLetterer    = "letterer"
	AuthorRoleCoverArtist = "cover_artist"
	AuthorRoleEditor      = "editor"
	AuthorRoleTranslator  = "translator"
)

// ValidAuthorRoles is the closed set of credit roles. Credits with a role
// outside this set are dropped at composition time with a warning.
var ValidAuthorRoles = map[string]struct{}{
	AuthorRoleWriter:      {},
	AuthorRolePenciller:   {},
	AuthorRoleInker:       {},
	AuthorRoleColorist:    {},
	AuthorRoleLetterer:    {},
	AuthorRoleCoverArtist: {},
	AuthorRoleEditor:      {},
	AuthorRoleTranslator:  {},
}

// Credit is a single (person, role) pair on an issue.
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
