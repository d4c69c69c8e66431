package tools

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/session"
)

// ImageDescription is the tool result fed back to the model.
type ImageDescription struct {
	Description string `json:"description"`
}

// DocumentIndex resolves an uploaded-document id to its metadata.
type DocumentIndex interface {
	GetDocumentByID(documentID string) *session.Document
}

// ImageDescribeTool describes a previously uploaded image: it resolves the
// image placeholder id against the session store and asks a vision-capable
// completion model what it sees.
type ImageDescribeTool struct {
	documents DocumentIndex
	vision    ai.ChatCompletion
}

var _ ai.Tool = (*ImageDescribeTool)(nil)

func NewImageDescribeTool(documents DocumentIndex, vision ai.ChatCompletion) *ImageDescribeTool {
	return &ImageDescribeTool{documents: documents, vision: vision}
}

func (t *ImageDescribeTool) Name() string {
	return "get_image_description"
}

func (t *ImageDescribeTool) Description() string {
	return "Get the description of an image with a query. It is useful while the user asking you to review the image, the image is a placeholder, eg: [image#123], the image id will be 123."
}

func (t *ImageDescribeTool) Parameters() ai.FunctionParameters {
	return ai.FunctionParameters{
		Type: ai.ParameterTypeObject,
		Properties: map[string]ai.ParameterProperty{
			"imageId": {Type: ai.ParameterTypeString},
			"query":   {Type: ai.ParameterTypeString},
		},
		Required: []string{"query", "imageId"},
	}
}

func (t *ImageDescribeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	imageID, _ := args["imageId"].(string)
	query, _ := args["query"].(string)
	if query == "" {
		query = "Describe this image."
	}

	document := t.documents.GetDocumentByID(imageID)
	if document == nil || !strings.HasPrefix(document.MIMEType, "image") {
		return &ImageDescription{Description: "Image not found"}, nil
	}

	candidates, err := t.vision.Generate(ctx, []ai.ChatMessage{
		ai.NewUserImageMessage(query, document.URL, document.MIMEType),
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe image")
	}
	if len(candidates) == 0 || candidates[0].Response.Type != ai.ResponseTypeText {
		return nil, errors.New("no description in model response")
	}

	return &ImageDescription{
		Description: "This is what you see in the image:\n" + candidates[0].Response.Text,
	}, nil
}
