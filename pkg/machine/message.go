// Package machine decodes Packer's machine-readable output stream. See doc.go for the format.
package machine

import (
	"strconv"
	"strings"
	"time"
)

// Message type tags emitted by Packer. The set is open: tags not listed here
// decode to a Message with a nil Payload and the raw fields preserved.
const (
	TypeArtifact            = "artifact"
	TypeUI                  = "ui"
	TypeError               = "error"
	TypeTemplateProvisioner = "template-provisioner"
	TypeTemplateBuilder     = "template-builder"
	TypeTemplateVariable    = "template-variable"
	TypeEndBuilds           = "end-builds"
	TypeVersion             = "version"
)

// Message is one decoded machine-readable record.
type Message struct {
	Timestamp time.Time // zero when the producer's timestamp was unparsable
	Target    string    // builder name, empty for global records
	Type      string    // type tag, always present
	Data      []string  // payload fields, verbatim
	Payload   any       // typed payload for known tags, nil otherwise
}

// Artifact is the payload of an "artifact" message: one artifact produced by
// a builder. Trailing key=value fields form the metadata map; all other
// trailing fields are output file paths.
type Artifact struct {
	Index    int
	ID       string
	Files    []string
	Metadata map[string]string
}

// UI is the payload of a "ui" message: human-oriented progress output with a
// category of say, message, or error.
type UI struct {
	Category string
	Text     string
}

// ErrorMessage is the payload of an "error" message.
type ErrorMessage struct {
	Text string
}

// TemplateProvisioner is the payload of a "template-provisioner" message:
// one provisioning step declared by the template.
type TemplateProvisioner struct {
	Name string
}

// TemplateBuilder is the payload of a "template-builder" message.
type TemplateBuilder struct {
	Name string
	Kind string
}

// TemplateVariable is the payload of a "template-variable" message.
type TemplateVariable struct {
	Name    string
	Default string
}

// EndBuilds is the payload of an "end-builds" message, marking the end of
// all parallel builds.
type EndBuilds struct{}

// Version is the payload of a "version" message.
type Version struct {
	Version string
}

type payloadFunc func(data []string) any

// registry maps a type tag to its payload decoder. Tags without an entry
// degrade to a generic Message so newer producer versions never break us.
var registry = map[string]payloadFunc{
	TypeArtifact:            decodeArtifact,
	TypeUI:                  decodeUI,
	TypeError:               decodeErrorMessage,
	TypeTemplateProvisioner: decodeTemplateProvisioner,
	TypeTemplateBuilder:     decodeTemplateBuilder,
	TypeTemplateVariable:    decodeTemplateVariable,
	TypeEndBuilds:           decodeEndBuilds,
	TypeVersion:             decodeVersion,
}

// DecodeMessage interprets the unescaped fields of one line as a Message.
// Field 0 is the timestamp, field 1 the target, field 2 the type tag, and
// fields 3.. the payload. It never fails: an unknown tag yields a generic
// Message, an unparsable timestamp yields the zero time.
func DecodeMessage(fields []string) Message {
	msg := Message{
		Target: field(fields, 1),
		Type:   field(fields, 2),
	}
	if sec, err := strconv.ParseInt(field(fields, 0), 10, 64); err == nil {
		msg.Timestamp = time.Unix(sec, 0).UTC()
	}
	if len(fields) > 3 {
		msg.Data = fields[3:]
	}
	if decode, ok := registry[msg.Type]; ok {
		msg.Payload = decode(msg.Data)
	}
	return msg
}

// field returns data[i], or the empty string when the producer sent fewer
// fields. Every payload decoder reads through this accessor so that missing
// trailing fields never index out of range.
func field(data []string, i int) string {
	if i < 0 || i >= len(data) {
		return ""
	}
	return data[i]
}

// rest joins data[i:] back with the delimiter. Used for free-text payloads so
// that extra fields from future producer versions are not silently dropped.
func rest(data []string, i int) string {
	if i >= len(data) {
		return ""
	}
	return strings.Join(data[i:], Delimiter)
}

func decodeArtifact(data []string) any {
	index, err := strconv.Atoi(field(data, 0))
	if err != nil {
		index = 0
	}
	artifact := Artifact{
		Index: index,
		ID:    field(data, 1),
	}
	for _, f := range data[min(2, len(data)):] {
		if key, value, ok := strings.Cut(f, "="); ok {
			if artifact.Metadata == nil {
				artifact.Metadata = make(map[string]string)
			}
			artifact.Metadata[key] = value
			continue
		}
		artifact.Files = append(artifact.Files, f)
	}
	return artifact
}

func decodeUI(data []string) any {
	return UI{
		Category: field(data, 0),
		Text:     rest(data, 1),
	}
}

func decodeErrorMessage(data []string) any {
	return ErrorMessage{Text: rest(data, 0)}
}

func decodeTemplateProvisioner(data []string) any {
	return TemplateProvisioner{Name: field(data, 0)}
}

func decodeTemplateBuilder(data []string) any {
	return TemplateBuilder{
		Name: field(data, 0),
		Kind: field(data, 1),
	}
}

func decodeTemplateVariable(data []string) any {
	return TemplateVariable{
		Name:    field(data, 0),
		Default: field(data, 1),
	}
}

func decodeEndBuilds(data []string) any {
	return EndBuilds{}
}

func decodeVersion(data []string) any {
	return Version{Version: field(data, 0)}
}
