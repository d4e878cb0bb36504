package client

import (
	"fmt"
	"net/url"
	"strings"
)

// Reference names a model at a revision, written owner/name[@revision].
// Hub urls such as https://huggingface.co/owner/name are accepted too.
type Reference struct {
	ID       string
	Revision string
}

func (r Reference) String() string {
	if r.Revision == "" {
		return r.ID
	}
	return fmt.Sprintf("%s@%s", r.ID, r.Revision)
}

func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.ParseRequestURI(raw)
		if err != nil {
			return Reference{}, fmt.Errorf("invalid reference: %s", err)
		}
		raw = strings.TrimPrefix(u.Path, "/")
		// https://host/owner/name/tree/<revision>
		if parts := strings.Split(raw, "/"); len(parts) >= 4 && parts[2] == "tree" {
			raw = parts[0] + "/" + parts[1] + "@" + strings.Join(parts[3:], "/")
		}
	}
	id, revision := raw, ""
	if splits := strings.SplitN(raw, "@", 2); len(splits) == 2 {
		id, revision = splits[0], splits[1]
	}
	id = strings.TrimSuffix(id, "/")
	if err := ValidateID(id); err != nil {
		return Reference{}, err
	}
	return Reference{ID: id, Revision: revision}, nil
}
