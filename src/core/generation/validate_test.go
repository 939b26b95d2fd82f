package generation_test

import (
	"strings"
	"testing"

	"reelforge/src/core/generation"
)

func validSubmission() generation.Submission {
	return generation.Submission{
		InputMediaID:   "42",
		Prompt:         "a short film about lighthouses",
		TargetDuration: 60,
		Style:          "cinematic",
	}
}

func TestValidateSubmission(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*generation.Submission)
		wantField string
	}{
		{"valid", func(s *generation.Submission) {}, ""},
		{"empty prompt", func(s *generation.Submission) { s.Prompt = "" }, "prompt"},
		{"oversized prompt", func(s *generation.Submission) {
			s.Prompt = strings.Repeat("a", generation.MaxPromptLength+1)
		}, "prompt"},
		{"prompt at limit", func(s *generation.Submission) {
			s.Prompt = strings.Repeat("a", generation.MaxPromptLength)
		}, ""},
		{"duration too short", func(s *generation.Submission) { s.TargetDuration = generation.MinTargetDuration - 1 }, "targetDuration"},
		{"duration too long", func(s *generation.Submission) { s.TargetDuration = generation.MaxTargetDuration + 1 }, "targetDuration"},
		{"duration at lower bound", func(s *generation.Submission) { s.TargetDuration = generation.MinTargetDuration }, ""},
		{"duration at upper bound", func(s *generation.Submission) { s.TargetDuration = generation.MaxTargetDuration }, ""},
		{"unknown style", func(s *generation.Submission) { s.Style = "noir" }, "style"},
		{"empty style", func(s *generation.Submission) { s.Style = "" }, "style"},
		{"missing media", func(s *generation.Submission) { s.InputMediaID = "" }, "inputMediaId"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(&sub)

			err := generation.ValidateSubmission(sub)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid submission, got %v", err)
				}
				return
			}

			vErr, ok := err.(*generation.ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tc.wantField {
				t.Errorf("expected field %s, got %s", tc.wantField, vErr.Field)
			}
		})
	}
}

func TestEveryStyleIsAccepted(t *testing.T) {
	for _, style := range generation.Styles {
		sub := validSubmission()
		sub.Style = style
		if err := generation.ValidateSubmission(sub); err != nil {
			t.Errorf("style %s rejected: %v", style, err)
		}
	}
}
