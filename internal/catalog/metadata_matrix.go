package catalog

import (
	"context"
	"fmt"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
)

const (
	MetadataMatrixSpec         = "MetadataMatrix"
	MetadataMatrixFromFileSpec = "MetadataMatrixFromFile"
)

var MetadataMatrix = metanode.Data(MetadataMatrixSpec).
	Meta(domain.Meta{
		Label:       "Class Metadata of a Gene Count Matrix",
		Description: "Class metadata for samples in a gene count matrix",
		Icon:        []string{"metadata_file"},
	}).
	Codec(fileFields().Merge(codec.Object(
		codec.Field("shape", codec.Tuple(codec.Number(), codec.Number())),
		codec.Field("columns", codec.Array(codec.String())),
		codec.Field("index", codec.Array(codec.String())),
		codec.Field("values", codec.Array(codec.Array(codec.String()))),
		codec.Field("ellipses", codec.Tuple(codec.Nullable(codec.Number()), codec.Nullable(codec.Number()))),
	))).
	Build()

func metadataMatrixNodes() []ports.MetaNode {
	fromFile := metanode.Process(MetadataMatrixFromFileSpec).
		Meta(domain.Meta{
			Label:       "Resolve a Metadata Matrix from a File",
			Description: "Ensure a file contains a metadata matrix and load it into a standard format",
			Icon:        []string{"file_transfer"},
		}).
		Inputs(metanode.Slot("file", FileURL)).
		Output(MetadataMatrix).
		Resolve(func(ctx context.Context, rc ports.ResolveContext) (any, error) {
			raw, err := rc.Compute.Compute(ctx, ports.ComputeRequest{
				Routine: compute.MetadataMatrixRoutine,
				Args:    []any{rc.Inputs["file"]},
			}, rc.Notify)
			if err != nil {
				return nil, err
			}
			var out any
			if err := xjson.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("decoding metadata matrix: %w", err)
			}
			return out, nil
		}).
		Story(func(props ports.StoryProps) string {
			if d := fileDescription(props.Inputs["file"]); d != "" {
				return fmt.Sprintf("The file containing %s was loaded as a metadata matrix.", d)
			}
			return "The file was loaded as a metadata matrix."
		}).
		Build()

	return []ports.MetaNode{MetadataMatrix, fromFile}
}
