//go:build !baremetal

package main

import (
	"errors"
	"sort"
	"strings"
	"time"
)

type press struct {
	button int // 0 = A, 1 = B
	at     time.Duration
}

// parsePresses reads "a@500ms,b@2s". Entries are returned in time order.
func parsePresses(s string) ([]press, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []press
	for _, item := range strings.Split(s, ",") {
		name, at, ok := strings.Cut(strings.TrimSpace(item), "@")
		if !ok {
			return nil, errors.New("press " + item + ": want <button>@<delay>")
		}
		var p press
		switch strings.ToLower(name) {
		case "a":
			p.button = 0
		case "b":
			p.button = 1
		default:
			return nil, errors.New("press " + item + ": button must be a or b")
		}
		d, err := time.ParseDuration(at)
		if err != nil || d < 0 {
			return nil, errors.New("press " + item + ": bad delay")
		}
		p.at = d
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out, nil
}
