package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/shelfscan/shelfd/internal/model"
)

// ShelfVision wraps a multimodal chat model as a black box: photo bytes in,
// a list of guessed titles/authors/ISBNs out. The prompt that elicits this
// shape is deliberately out of scope here; only the request/response
// plumbing and decoding are this adapter's concern.
type ShelfVision struct {
	client openai.Client
	model  openai.ChatModel
}

// NewShelfVision builds a vision adapter against the given model name (e.g.
// "gpt-4o").
func NewShelfVision(apiKey, modelName string) *ShelfVision {
	return &ShelfVision{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
	}
}

// Name implements providers.ImageDetector.
func (v *ShelfVision) Name() string { return "shelfvision" }

type detectionRow struct {
	TitleGuess  string  `json:"titleGuess"`
	AuthorGuess string  `json:"authorGuess"`
	ISBNGuess   string  `json:"isbnGuess"`
	Confidence  float64 `json:"confidence"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

const visionSystemPrompt = `You are a bookshelf vision system. Identify every book spine visible in the photo and respond with a JSON array of objects: {"titleGuess","authorGuess","isbnGuess","confidence","x","y","width","height"}, where x/y/width/height are normalized 0-1 bounding box coordinates. Respond with the array only.`

// DetectBooksInImage implements providers.ImageDetector.
func (v *ShelfVision) DetectBooksInImage(ctx context.Context, image []byte) ([]model.DetectedBook, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: v.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(visionSystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	})
	if err != nil {
		return nil, &Failure{Provider: v.Name(), Kind: FailureUpstream5xx, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNotFound
	}

	raw := resp.Choices[0].Message.Content
	var rows []detectionRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, &Failure{Provider: v.Name(), Kind: FailureMalformedResponse, Err: fmt.Errorf("decoding detections: %w", err)}
	}

	out := make([]model.DetectedBook, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.DetectedBook{
			TitleGuess:  r.TitleGuess,
			AuthorGuess: r.AuthorGuess,
			ISBNGuess:   r.ISBNGuess,
			Confidence:  r.Confidence,
			BoundingBox: model.BoundingBox{r.X, r.Y, r.Width, r.Height},
		})
	}
	return out, nil
}
