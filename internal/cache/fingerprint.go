package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Key prefixes partition the store by computation kind so a completion and
// an execution can never collide even with identical payloads.
const (
	PrefixCompletion = "llm:"
	PrefixExecution  = "code:"
)

// Fingerprint hashes the inputs of a computation into a stable hex digest.
// Map keys are serialized in sorted order, so two logically identical input
// sets always produce the same digest.
func Fingerprint(inputs map[string]any) (string, error) {
	canonical, err := canonicalize(inputs)
	if err != nil {
		return "", fmt.Errorf("fingerprint inputs: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CompletionKey builds the cache key for a model completion. specialist is
// part of the key because specialist routing changes which provider and model
// serve the request even when the prompt is identical.
func CompletionKey(provider, model, specialist, prompt, system string, temperature float64) (string, error) {
	fp, err := Fingerprint(map[string]any{
		"provider":    provider,
		"model":       model,
		"specialist":  specialist,
		"prompt":      prompt,
		"system":      system,
		"temperature": temperature,
	})
	if err != nil {
		return "", err
	}
	return PrefixCompletion + fp, nil
}

// ExecutionKey builds the cache key for a code execution. inputDigests maps
// staged file names to their content digests, so the same script over
// different data misses.
func ExecutionKey(code, interpreter string, inputDigests map[string]string) (string, error) {
	fp, err := Fingerprint(map[string]any{
		"code":        code,
		"interpreter": interpreter,
		"inputs":      inputDigests,
	})
	if err != nil {
		return "", err
	}
	return PrefixExecution + fp, nil
}

// canonicalize renders v as deterministic JSON. encoding/json already sorts
// map[string]any keys; nested maps of other types are normalized first.
func canonicalize(inputs map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(inputs[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, name...)
		buf = append(buf, ':')
		buf = append(buf, value...)
	}
	return append(buf, '}'), nil
}
