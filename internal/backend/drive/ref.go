package drive

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dl-alexandre/docloader/internal/utils"
)

var (
	folderPathPattern = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	idPattern         = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bareIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
)

// FolderRef is a parsed Drive folder reference
type FolderRef struct {
	ID          string
	ResourceKey string
}

// ParseFolderRef extracts the folder ID from a sharing URL or a bare ID.
//
// Accepted shapes:
//
//	https://drive.google.com/drive/folders/<id>[?resourcekey=<key>]
//	https://drive.google.com/drive/u/0/folders/<id>
//	https://drive.google.com/open?id=<id>
//	<id>
func ParseFolderRef(ref string) (FolderRef, error) {
	ref = strings.TrimSpace(ref)
	if bareIDPattern.MatchString(ref) {
		return FolderRef{ID: ref}, nil
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host != "drive.google.com" {
		return FolderRef{}, invalidFolderRef(ref)
	}

	query := u.Query()
	key := query.Get("resourcekey")
	if key != "" && !idPattern.MatchString(key) {
		key = ""
	}

	if m := folderPathPattern.FindStringSubmatch(u.Path); m != nil {
		return FolderRef{ID: m[1], ResourceKey: key}, nil
	}
	if id := query.Get("id"); id != "" && idPattern.MatchString(id) {
		return FolderRef{ID: id, ResourceKey: key}, nil
	}
	return FolderRef{}, invalidFolderRef(ref)
}

func invalidFolderRef(ref string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidFolderReference,
		fmt.Sprintf("Invalid Google Drive folder URL or ID: %q", ref)).
		WithContext("accepted", "https://drive.google.com/drive/folders/<id>, https://drive.google.com/open?id=<id>, or a bare folder ID").
		Build())
}
