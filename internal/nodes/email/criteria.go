package email

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Criteria is a search filter in its JSON array form: each element is a
// string token (e.g. "UNSEEN") or a sub-array of a keyword and its
// arguments (e.g. ["UID", "100:*"]). It is kept verbatim as parsed and
// only interpreted by the session when the search is issued.
type Criteria []any

// DefaultCriteria matches every message without the \Seen flag.
func DefaultCriteria() Criteria {
	return Criteria{"UNSEEN"}
}

// ParseCriteria decodes a JSON search filter.
func ParseCriteria(raw string) (Criteria, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %T", v)
	}
	return Criteria(arr), nil
}

func (c Criteria) String() string {
	b, err := json.Marshal([]any(c))
	if err != nil {
		return fmt.Sprint([]any(c))
	}
	return string(b)
}

// Compile converts the criteria into an IMAP SEARCH key. All elements are
// ANDed together.
func (c Criteria) Compile() (*imap.SearchCriteria, error) {
	out := &imap.SearchCriteria{}
	for i, elem := range c {
		crit, err := compileElement(elem)
		if err != nil {
			return nil, fmt.Errorf("criterion %d: %w", i, err)
		}
		out.And(crit)
	}
	return out, nil
}

var flagTokens = map[string]imap.Flag{
	"ANSWERED": imap.FlagAnswered,
	"DELETED":  imap.FlagDeleted,
	"DRAFT":    imap.FlagDraft,
	"FLAGGED":  imap.FlagFlagged,
	"SEEN":     imap.FlagSeen,
	"RECENT":   imap.Flag(`\Recent`),
}

var unflagTokens = map[string]imap.Flag{
	"UNANSWERED": imap.FlagAnswered,
	"UNDELETED":  imap.FlagDeleted,
	"UNDRAFT":    imap.FlagDraft,
	"UNFLAGGED":  imap.FlagFlagged,
	"UNSEEN":     imap.FlagSeen,
	"OLD":        imap.Flag(`\Recent`),
}

var headerKeywords = map[string]string{
	"FROM":    "From",
	"TO":      "To",
	"CC":      "Cc",
	"BCC":     "Bcc",
	"SUBJECT": "Subject",
}

func compileElement(elem any) (*imap.SearchCriteria, error) {
	switch e := elem.(type) {
	case string:
		return compileToken(e)
	case []any:
		if len(e) == 0 {
			return nil, fmt.Errorf("empty criterion")
		}
		keyword, ok := e[0].(string)
		if !ok {
			return nil, fmt.Errorf("criterion keyword must be a string, got %T", e[0])
		}
		return compileKeyword(keyword, e[1:])
	default:
		return nil, fmt.Errorf("unsupported criterion %v (%T)", elem, elem)
	}
}

func compileToken(token string) (*imap.SearchCriteria, error) {
	if strings.HasPrefix(token, "!") {
		inner, err := compileToken(token[1:])
		if err != nil {
			return nil, err
		}
		return &imap.SearchCriteria{Not: []imap.SearchCriteria{*inner}}, nil
	}

	upper := strings.ToUpper(token)
	if f, ok := flagTokens[upper]; ok {
		return &imap.SearchCriteria{Flag: []imap.Flag{f}}, nil
	}
	if f, ok := unflagTokens[upper]; ok {
		return &imap.SearchCriteria{NotFlag: []imap.Flag{f}}, nil
	}

	switch upper {
	case "ALL":
		return &imap.SearchCriteria{}, nil
	case "NEW":
		return &imap.SearchCriteria{
			Flag:    []imap.Flag{imap.Flag(`\Recent`)},
			NotFlag: []imap.Flag{imap.FlagSeen},
		}, nil
	}

	if _, ok := argKeywords[upper]; ok {
		return nil, fmt.Errorf("criterion %s requires arguments", upper)
	}
	return nil, fmt.Errorf("unknown criterion %q", token)
}

// argKeywords lists keywords taking arguments, with their argument count.
var argKeywords = map[string]int{
	"UID": 1, "SINCE": 1, "BEFORE": 1, "ON": 1,
	"SENTSINCE": 1, "SENTBEFORE": 1, "SENTON": 1,
	"FROM": 1, "TO": 1, "CC": 1, "BCC": 1, "SUBJECT": 1,
	"BODY": 1, "TEXT": 1, "HEADER": 2,
	"LARGER": 1, "SMALLER": 1,
	"KEYWORD": 1, "UNKEYWORD": 1,
	"NOT": 1, "OR": 2,
}

func compileKeyword(keyword string, args []any) (*imap.SearchCriteria, error) {
	upper := strings.ToUpper(keyword)
	if strings.HasPrefix(upper, "!") {
		inner, err := compileKeyword(keyword[1:], args)
		if err != nil {
			return nil, err
		}
		return &imap.SearchCriteria{Not: []imap.SearchCriteria{*inner}}, nil
	}

	want, ok := argKeywords[upper]
	if !ok {
		if len(args) == 0 {
			return compileToken(keyword)
		}
		return nil, fmt.Errorf("unknown criterion %q", keyword)
	}
	if len(args) != want {
		return nil, fmt.Errorf(
			"criterion %s takes %d argument(s), got %d", upper, want, len(args),
		)
	}

	switch upper {
	case "UID":
		set, err := parseUIDSet(args[0])
		if err != nil {
			return nil, err
		}
		return &imap.SearchCriteria{UID: []imap.UIDSet{set}}, nil

	case "SINCE", "BEFORE", "ON", "SENTSINCE", "SENTBEFORE", "SENTON":
		t, err := parseDate(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", upper, err)
		}
		return dateCriteria(upper, t), nil

	case "FROM", "TO", "CC", "BCC", "SUBJECT":
		s, err := argString(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", upper, err)
		}
		return &imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{
			{Key: headerKeywords[upper], Value: s},
		}}, nil

	case "HEADER":
		key, err := argString(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion HEADER: %w", err)
		}
		value, err := argString(args[1])
		if err != nil {
			return nil, fmt.Errorf("criterion HEADER: %w", err)
		}
		return &imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{
			{Key: key, Value: value},
		}}, nil

	case "BODY", "TEXT":
		s, err := argString(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", upper, err)
		}
		if upper == "BODY" {
			return &imap.SearchCriteria{Body: []string{s}}, nil
		}
		return &imap.SearchCriteria{Text: []string{s}}, nil

	case "LARGER", "SMALLER":
		n, err := argInt(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", upper, err)
		}
		if upper == "LARGER" {
			return &imap.SearchCriteria{Larger: n}, nil
		}
		return &imap.SearchCriteria{Smaller: n}, nil

	case "KEYWORD", "UNKEYWORD":
		s, err := argString(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", upper, err)
		}
		if upper == "KEYWORD" {
			return &imap.SearchCriteria{Flag: []imap.Flag{imap.Flag(s)}}, nil
		}
		return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.Flag(s)}}, nil

	case "NOT":
		inner, err := compileElement(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion NOT: %w", err)
		}
		return &imap.SearchCriteria{Not: []imap.SearchCriteria{*inner}}, nil

	case "OR":
		left, err := compileElement(args[0])
		if err != nil {
			return nil, fmt.Errorf("criterion OR: %w", err)
		}
		right, err := compileElement(args[1])
		if err != nil {
			return nil, fmt.Errorf("criterion OR: %w", err)
		}
		return &imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{*left, *right}}}, nil
	}

	return nil, fmt.Errorf("unknown criterion %q", keyword)
}

func dateCriteria(keyword string, t time.Time) *imap.SearchCriteria {
	next := t.AddDate(0, 0, 1)
	switch keyword {
	case "SINCE":
		return &imap.SearchCriteria{Since: t}
	case "BEFORE":
		return &imap.SearchCriteria{Before: t}
	case "ON":
		return &imap.SearchCriteria{Since: t, Before: next}
	case "SENTSINCE":
		return &imap.SearchCriteria{SentSince: t}
	case "SENTBEFORE":
		return &imap.SearchCriteria{SentBefore: t}
	default:
		return &imap.SearchCriteria{SentSince: t, SentBefore: next}
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2-Jan-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(arg any) (time.Time, error) {
	s, err := argString(arg)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseUIDSet parses "1:*", "5", "1,3,10:20" into a UID set. A "*" bound
// is encoded as 0, which go-imap renders as "*".
func parseUIDSet(arg any) (imap.UIDSet, error) {
	var s string
	switch a := arg.(type) {
	case string:
		s = a
	case float64:
		s = strconv.FormatFloat(a, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(a))
		for _, p := range a {
			ps, err := argString(p)
			if err != nil {
				return nil, fmt.Errorf("criterion UID: %w", err)
			}
			parts = append(parts, ps)
		}
		s = strings.Join(parts, ",")
	default:
		return nil, fmt.Errorf("criterion UID: unsupported argument %T", arg)
	}

	var set imap.UIDSet
	for _, rng := range strings.Split(s, ",") {
		rng = strings.TrimSpace(rng)
		if rng == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(rng, ":")
		start, err := parseUID(lo)
		if err != nil {
			return nil, err
		}
		stop := start
		if isRange {
			if stop, err = parseUID(hi); err != nil {
				return nil, err
			}
		}
		set = append(set, imap.UIDRange{Start: start, Stop: stop})
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("criterion UID: empty set")
	}
	return set, nil
}

func parseUID(s string) (imap.UID, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("criterion UID: invalid uid %q", s)
	}
	return imap.UID(n), nil
}

func argString(arg any) (string, error) {
	switch a := arg.(type) {
	case string:
		return a, nil
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(a), nil
	default:
		return "", fmt.Errorf("expected a string argument, got %T", arg)
	}
}

func argInt(arg any) (int64, error) {
	switch a := arg.(type) {
	case float64:
		return int64(a), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	default:
		return 0, fmt.Errorf("expected a number argument, got %T", arg)
	}
}
