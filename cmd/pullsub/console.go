package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mirror520/pullsub"
	"github.com/mirror520/pullsub/sample"
)

var errNotStringList = errors.New("expects a JSON-serialized list of strings")

func parseConnect(value string) ([]string, error) {
	var peers []string
	if err := json.Unmarshal([]byte(value), &peers); err != nil {
		return nil, fmt.Errorf("%w: %w", errNotStringList, err)
	}

	if peers == nil {
		return nil, errNotStringList
	}

	return peers, nil
}

func printer(w io.Writer) pullsub.Handler {
	return func(ctx context.Context, s *sample.Sample) error {
		_, err := fmt.Fprintf(w, ">> [Subscriber] Received ('%s': '%s')\n", s.Key, s.Payload)
		return err
	}
}

// pullLoop pulls once for every line read from in, until a line starting
// with 'q' or the end of the input.
func pullLoop(ctx context.Context, sess pullsub.Session, id pullsub.SubscriptionID, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "q") {
			return nil
		}

		if _, err := sess.Pull(ctx, id); err != nil {
			if errors.Is(err, pullsub.ErrHandlerFailed) {
				continue
			}
			return err
		}
	}

	return scanner.Err()
}
