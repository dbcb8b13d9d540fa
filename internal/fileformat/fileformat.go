/*Package fileformat implements the sequence-format mini-language used for
checkpoint dump indices and restart ranges, e.g.:

    Dumps = 0..100 - 63
    Dumps = 0..10 + 100

A sequence format string is a series of tokens separated by "+" or "-".
Each token is either a single integer or two integers separated by "..".
Tokens build up a set of integers by adding or removing individual values
or contiguous ranges. Spaces around "+"/"-"/".." are ignored.
*/
package fileformat

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Aabhash007/gamer/internal/errs"
)

// BigSequence bounds the size of an expanded sequence; anything larger is
// almost certainly a typo in a config file.
const BigSequence = 1 << 20

// ExpandSequence expands a sequence-format string into a sorted list of
// distinct integers.
func ExpandSequence(format string) ([]int, error) {
	tok, err := tokenize(format)
	if err != nil {
		return nil, err
	}
	adds, subs, err := split(tok)
	if err != nil {
		return nil, err
	}

	m := map[int]bool{}
	for _, t := range adds {
		for _, n := range parseToken(t) {
			if m[n] {
				return nil, fmt.Errorf("the number %d is added more than once", n)
			}
			m[n] = true
		}
	}
	for _, t := range subs {
		for _, n := range parseToken(t) {
			if !m[n] {
				return nil, fmt.Errorf(
					"the number %d is removed more times than it was added", n)
			}
			delete(m, n)
		}
	}

	if len(m) > BigSequence {
		return nil, fmt.Errorf(
			"this sequence would have %d elements, which is almost certainly a bug",
			len(m))
	}

	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// ExpandDumps expands the Dumps sequence format used in run configuration,
// exiting the process on a malformed string, matching the fatal-on-bad-config
// behavior of the rest of the config layer.
func ExpandDumps(format string) []int {
	dumps, err := ExpandSequence(format)
	if err != nil {
		errs.External("The Dumps format string %q is not valid: %s", format, err)
	}
	return dumps
}

func tokenize(format string) ([]string, error) {
	clean := strings.ReplaceAll(format, "+", " + ")
	clean = strings.ReplaceAll(clean, "-", " - ")

	raw := strings.Split(clean, " ")
	tok := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t != "" {
			tok = append(tok, t)
		}
	}
	if len(tok) == 0 {
		return nil, fmt.Errorf("the format string is empty")
	}
	return tok, nil
}

func split(tok []string) (adds, subs []string, err error) {
	start := 0
	if tok[0] == "+" || tok[0] == "-" {
		start = 0
	} else {
		if e := validToken(tok[0]); e != nil {
			return nil, nil, fmt.Errorf("element 1, %q, cannot be parsed: %s", tok[0], e)
		}
		adds = append(adds, tok[0])
		start = 1
	}

	for i := start; i < len(tok); i += 2 {
		if tok[i] != "+" && tok[i] != "-" {
			return nil, nil, fmt.Errorf(
				"element %d, %q, should be '+' or '-'", i+1, tok[i])
		}
		if i+1 >= len(tok) {
			return nil, nil, fmt.Errorf("the format string ends in a trailing %q", tok[i])
		}
		if e := validToken(tok[i+1]); e != nil {
			return nil, nil, fmt.Errorf(
				"element %d, %q, cannot be parsed: %s", i+2, tok[i+1], e)
		}
		if tok[i] == "+" {
			adds = append(adds, tok[i+1])
		} else {
			subs = append(subs, tok[i+1])
		}
	}
	return adds, subs, nil
}

func validToken(tok string) error {
	if tok == "" {
		return fmt.Errorf("the token is empty")
	}
	bounds := strings.Split(tok, "..")
	switch len(bounds) {
	case 1:
		if _, err := strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("%q is not an integer", bounds[0])
		}
		return nil
	case 2:
		start, err1 := strconv.Atoi(bounds[0])
		end, err2 := strconv.Atoi(bounds[1])
		if err1 != nil {
			return fmt.Errorf("%q is not an integer", bounds[0])
		}
		if err2 != nil {
			return fmt.Errorf("%q is not an integer", bounds[1])
		}
		if end < start {
			return fmt.Errorf("lower bound %d exceeds upper bound %d", start, end)
		}
		return nil
	}
	return fmt.Errorf("it has more than one '..'")
}

// parseToken assumes validToken already passed.
func parseToken(tok string) []int {
	bounds := strings.Split(tok, "..")
	if len(bounds) == 1 {
		n, _ := strconv.Atoi(tok)
		return []int{n}
	}
	start, _ := strconv.Atoi(bounds[0])
	end, _ := strconv.Atoi(bounds[1])
	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

// DumpName formats a checkpoint file name from a printf-style verb and a
// dump index, e.g. DumpName("Data_%06d", 42) -> "Data_000042".
func DumpName(verb string, dump int) string {
	return fmt.Sprintf(verb, dump)
}
