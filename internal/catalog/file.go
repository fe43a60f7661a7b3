package catalog

import (
	"fmt"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
)

const (
	FileURLSpec   = "FileURL"
	InputFileSpec = "Input[File]"
)

// fileFields describe an uploaded file. Other file-shaped data nodes merge
// them into their own codec.
func fileFields() *codec.ObjectCodec {
	return codec.Object(
		codec.Field("url", codec.String()),
		codec.Field("filename", codec.String()),
		codec.Optional("description", codec.Nullable(codec.String())),
		codec.Optional("size", codec.Integer()),
		codec.Optional("sha256", codec.String()),
	)
}

var FileURL = metanode.Data(FileURLSpec).
	Meta(domain.Meta{
		Label:       "File URL",
		Description: "URL to a File",
	}).
	Codec(fileFields()).
	Build()

func fileDescription(v any) string {
	file, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	description, _ := file["description"].(string)
	return description
}

func fileNodes() []ports.MetaNode {
	input := metanode.Process(InputFileSpec).
		Meta(domain.Meta{
			Label:       "File Upload",
			Description: "Upload a Data File",
			Icon:        []string{"input"},
			Tags: map[string]map[string]float64{
				"Type":        {"File": 1},
				"Cardinality": {"Term": 1},
			},
		}).
		Output(FileURL).
		Prompt().
		Story(func(props ports.StoryProps) string {
			if d := fileDescription(props.Output); d != "" {
				return fmt.Sprintf("A file containing %s was provided.", d)
			}
			return "A file was provided."
		}).
		Build()

	return []ports.MetaNode{FileURL, input}
}
