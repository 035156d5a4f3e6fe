package authflow

import "net/url"

// CallbackResult is the interpreted OAuth callback query. Present is
// false when the URL carries no callback parameters at all, which is how
// re-parsing an already-stripped URL stays a no-op.
type CallbackResult struct {
	Present     bool
	Success     bool
	ErrorCode   string
	Description string
}

// ParseCallback reads the OAuth callback parameters out of a query.
// A callback is either ?success=true or ?error=code&description=text;
// success wins if both somehow appear.
func ParseCallback(query url.Values) CallbackResult {
	if query.Get("success") == "true" {
		return CallbackResult{Present: true, Success: true}
	}
	if errCode := query.Get("error"); errCode != "" {
		return CallbackResult{
			Present:     true,
			ErrorCode:   errCode,
			Description: query.Get("description"),
		}
	}
	return CallbackResult{}
}

// StripCallback removes the callback parameters from a query, leaving
// unrelated parameters in place. Stripping a clean query returns it
// unchanged.
func StripCallback(query url.Values) url.Values {
	cleaned := url.Values{}
	for key, values := range query {
		switch key {
		case "success", "error", "description":
		default:
			cleaned[key] = values
		}
	}
	return cleaned
}
