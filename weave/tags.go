package weave

// Reserved tag names present on every upload, in this order.
const (
	TagAppName     = "App-Name"
	TagContentType = "Content-Type"
	TagFunction    = "Function"
	TagFileName    = "File-Name"
)

const (
	DefaultAppName  = "WeaveMint"
	DefaultFunction = "nft-image"
	UnknownFileName = "unknown"
)

// Tag is a name/value pair attached to a transaction. Names may repeat.
type Tag struct {
	Name  string `cbor:"1,keyasint" yaml:"name"`
	Value string `cbor:"2,keyasint" yaml:"value"`
}

// Lookup returns the value of the first tag named name.
func Lookup(tags []Tag, name string) (string, bool) {
	for _, t := range tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// buildTags returns the reserved tags followed by extra. Extra tags are
// appended even when their names collide with reserved ones.
func buildTags(appName, contentType, function, fileName string, extra []Tag) []Tag {
	out := make([]Tag, 0, 4+len(extra))
	out = append(out,
		Tag{Name: TagAppName, Value: appName},
		Tag{Name: TagContentType, Value: contentType},
		Tag{Name: TagFunction, Value: function},
		Tag{Name: TagFileName, Value: fileName},
	)
	return append(out, extra...)
}
