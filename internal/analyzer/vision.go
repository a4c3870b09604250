package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// ImageDescriber turns one photo into a textual description of the civic issue it shows.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image models.Media) (string, error)
}

// ImageChecker is the fast "is this plausibly a civic-issue photo?" check.
type ImageChecker interface {
	CheckImage(ctx context.Context, image models.Media) (*ImageCheck, error)
}

type ImageCheck struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

const describePrompt = `Describe this photograph as evidence for a civic complaint to a local government.
Focus on the visible problem (for example potholes, garbage, broken streetlights, water leakage,
fallen trees, damaged public property), its apparent severity and any landmarks or signage.
Answer in 2-4 plain sentences. Do not speculate about people's identities.`

const checkPrompt = `Decide whether this photograph plausibly shows a civic or public-infrastructure issue that a
local government department could act on. Selfies, memes, screenshots, documents and indoor personal
photos are not valid.
Respond ONLY with a JSON object: {"isValid": true|false, "message": "short reason for the citizen"}`

var imageCheckSchema = MustSchema("image_check", `{
  "type": "object",
  "required": ["isValid"],
  "properties": {
    "isValid": {"type": "boolean"},
    "message": {"type": ["string", "null"]}
  }
}`)

func (c *Client) DescribeImage(ctx context.Context, image models.Media) (string, error) {
	content, err := c.chat(ctx, c.opts.VisionModel, visionMessages(describePrompt, image), false)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}

	description := strings.TrimSpace(content)
	if description == "" {
		return "", fmt.Errorf("describe image: %w: empty description", ErrMalformedOutput)
	}
	return description, nil
}

func (c *Client) CheckImage(ctx context.Context, image models.Media) (*ImageCheck, error) {
	content, err := c.chat(ctx, c.opts.VisionModel, visionMessages(checkPrompt, image), true)
	if err != nil {
		return nil, fmt.Errorf("check image: %w", err)
	}

	var check ImageCheck
	if err := ParseStructured(content, imageCheckSchema, &check); err != nil {
		return nil, fmt.Errorf("check image: %w", err)
	}
	if check.Message == "" {
		if check.IsValid {
			check.Message = "Image looks like a civic issue"
		} else {
			check.Message = "This image does not appear to show a civic issue"
		}
	}
	return &check, nil
}

func visionMessages(prompt string, image models.Media) []Message {
	return []Message{
		{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: utils.EncodeDataURI(image.Data, image.ContentType)}},
			},
		},
	}
}
