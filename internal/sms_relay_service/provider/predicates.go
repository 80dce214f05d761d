package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SuccessPredicate decides whether a parsed 2xx response body means the message was accepted.
type SuccessPredicate func(body map[string]any) bool

var predicates = map[string]SuccessPredicate{
	"textbelt": func(body map[string]any) bool {
		return isTrue(body["success"])
	},
	"freesms": func(body map[string]any) bool {
		return isString(body["status"], "sent") || isTrue(body["success"])
	},
	"sms77": func(body map[string]any) bool {
		return isString(body["success"], "100") || isTrue(body["success"]) || isString(body["status"], "sent")
	},
	"smsapi": func(body map[string]any) bool {
		errVal, hasErr := body["error"]
		return !hasErr || errVal == nil || isTrue(body["success"]) || isString(body["status"], "sent")
	},
	"default": func(body map[string]any) bool {
		return isTrue(body["success"]) || isString(body["status"], "sent")
	},
}

// LookupPredicate returns the predicate registered under name.
func LookupPredicate(name string) (SuccessPredicate, bool) {
	p, ok := predicates[strings.ToLower(name)]
	return p, ok
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func isString(v any, want string) bool {
	s, ok := v.(string)
	return ok && s == want
}

// externalID reads textId, falling back to id. Numeric ids are rendered without exponent.
func externalID(body map[string]any) string {
	for _, key := range []string{"textId", "id"} {
		if s := scalarString(body[key]); s != "" {
			return s
		}
	}
	return ""
}

// quotaRemaining reads quotaRemaining, falling back to remaining.
func quotaRemaining(body map[string]any) *int {
	for _, key := range []string{"quotaRemaining", "remaining"} {
		switch v := body[key].(type) {
		case float64:
			if v == math.Trunc(v) {
				n := int(v)
				return &n
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return &n
			}
		}
	}
	return nil
}

// errorText renders the error field of a response body as text.
func errorText(body map[string]any) string {
	v, ok := body["error"]
	if !ok || v == nil {
		return ""
	}
	if s := scalarString(v); s != "" {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
