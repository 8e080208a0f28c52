package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pavelanni/mocktest/internal/model"
)

// ListTests returns the full-length or subject-wise test listing.
func (c *Client) ListTests(ctx context.Context, kind model.TestKind) ([]model.MockTest, error) {
	switch kind {
	case model.KindFull, model.KindSubject:
	default:
		return nil, fmt.Errorf("unknown test kind %q", kind)
	}
	var tests []model.MockTest
	if err := c.get(ctx, "/mocktests/"+string(kind), &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

// ResultsSummary returns the signed-in user's results, newest first.
func (c *Client) ResultsSummary(ctx context.Context) ([]model.ResultSummary, error) {
	var results []model.ResultSummary
	if err := c.get(ctx, "/mocktests/results/summary", &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Resume fetches the question paper of a test.
func (c *Client) Resume(ctx context.Context, testID int64) (model.TestPaper, error) {
	var paper model.TestPaper
	if err := c.get(ctx, fmt.Sprintf("/mocktests/%d/resume", testID), &paper); err != nil {
		return model.TestPaper{}, err
	}
	return paper, nil
}

// Submit sends the answers of an attempt. It is never retried automatically.
func (c *Client) Submit(ctx context.Context, testID int64, attemptID string, sub model.Submission) (model.SubmitResponse, error) {
	if sub.Answers == nil {
		sub.Answers = map[model.QuestionID]string{}
	}
	var resp model.SubmitResponse
	path := fmt.Sprintf("/mocktests/%d/submit/%s", testID, url.PathEscape(attemptID))
	if err := c.post(ctx, path, sub, &resp); err != nil {
		return model.SubmitResponse{}, err
	}
	return resp, nil
}

// Preview fetches a graded result with per-question review data.
func (c *Client) Preview(ctx context.Context, resultID int64) (model.Result, error) {
	var res model.Result
	if err := c.get(ctx, fmt.Sprintf("/mocktests/result/%d/preview", resultID), &res); err != nil {
		return model.Result{}, err
	}
	return res, nil
}
