// Package judge provides an LLM-backed verifier Node: given a model
// prediction and a reference label, it prompts a chat model to produce a
// pass/fail verdict plus a short rationale. It is a concrete, non-core
// collaborator of the planning engine (engine.Node), not part of the
// planner/scheduler core itself.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cvebench/flowengine/engine"
)

// Verdict is the structured result of one judge call.
type Verdict struct {
	Pass      bool   `json:"pass"`
	Rationale string `json:"rationale"`
}

// Node wraps a ChatModel as an engine.Node with a single static mode:
// requires the prediction and reference resources named at construction
// and provides a Verdict under the given output name.
type Node struct {
	model  ChatModel
	system string

	predictionName engine.ResourceName
	referenceName  engine.ResourceName
	verdictName    engine.ResourceName
}

// New returns a judge Node. system is a prompt prefix describing the
// grading rubric (e.g. "Judge whether the caption matches the image
// description; respond pass or fail with a one-sentence rationale.").
func New(model ChatModel, system string, prediction, reference, verdict engine.ResourceName) *Node {
	return &Node{
		model:          model,
		system:         system,
		predictionName: prediction,
		referenceName:  reference,
		verdictName:    verdict,
	}
}

// StaticContracts implements engine.StaticContractor: one mode requiring
// the prediction and reference resources and providing the verdict.
func (n *Node) StaticContracts() []engine.Contract {
	return []engine.Contract{
		{
			Requires: []engine.ResourceName{n.predictionName, n.referenceName},
			Provides: []engine.ResourceName{n.verdictName},
		},
	}
}

// GetContract implements engine.Node.
func (n *Node) GetContract(mode engine.ModeID) (engine.Contract, bool) {
	contracts := n.StaticContracts()
	if int(mode) != 0 || len(contracts) == 0 {
		return engine.Contract{}, false
	}
	return contracts[0], true
}

// Setup implements engine.Node. It does not negotiate types beyond
// accepting anything stringable for prediction/reference and always
// produces a "judge.verdict" kind output.
func (n *Node) Setup(mode engine.ModeID, inputTypes []engine.ResourceType, outputMask []bool) (engine.Worker, []engine.ResourceType, error) {
	if mode != 0 {
		return nil, nil, fmt.Errorf("judge: unknown mode %d", mode)
	}
	if len(inputTypes) != 2 {
		return nil, nil, fmt.Errorf("judge: expected 2 inputs, got %d", len(inputTypes))
	}

	worker := func(inputs []any) ([]any, error) {
		if len(outputMask) > 0 && !outputMask[0] {
			return []any{nil}, nil
		}

		prediction := fmt.Sprint(inputs[0])
		reference := fmt.Sprint(inputs[1])

		prompt := strings.Join([]string{
			"Prediction:", prediction,
			"Reference:", reference,
			`Respond with a single JSON object: {"pass": true|false, "rationale": "..."}.`,
		}, "\n")

		messages := []Message{
			{Role: RoleSystem, Content: n.system},
			{Role: RoleUser, Content: prompt},
		}

		out, err := n.model.Chat(context.Background(), messages)
		if err != nil {
			return nil, fmt.Errorf("judge: chat call failed: %w", err)
		}

		v, err := parseVerdict(out.Text)
		if err != nil {
			return nil, fmt.Errorf("judge: could not parse verdict: %w", err)
		}
		return []any{v}, nil
	}

	return worker, []engine.ResourceType{{Kind: "judge.verdict"}}, nil
}

// parseVerdict extracts a Verdict from a chat model's raw text response,
// tolerating a response that wraps the JSON object in surrounding prose.
func parseVerdict(text string) (Verdict, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("no JSON object found in response: %q", text)
	}
	var v Verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}
