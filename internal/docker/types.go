package docker

import "strings"

const noneTag = "<none>:<none>"

// Image describes a locally available image as reported by the engine. Tag is
// the first of Tags, which holds every repo tag the image is known by.
type Image struct {
	ID           string
	Tag          string
	Tags         []string
	ExposedPorts []uint16
}

// IsNone reports whether the image only carries the synthetic untagged
// reference the engine uses for dangling layers.
func (i Image) IsNone() bool {
	return i.Tag == "" || i.Tag == noneTag
}

// Container describes a container as reported by the engine.
type Container struct {
	ID     string
	Image  string
	Status string
	Name   string
}

func repoTags(tags []string) []string {
	kept := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag != "" && tag != noneTag {
			kept = append(kept, tag)
		}
	}
	return kept
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}

	return strings.TrimPrefix(names[0], "/")
}
