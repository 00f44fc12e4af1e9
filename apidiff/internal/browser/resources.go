package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources fails requests whose resource type is listed in types.
// The returned router must be stopped when the page closes.
func blockResources(page *rod.Page, types []string) (*rod.HijackRouter, error) {
	block := blockSet(types)
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if block[canonicalType(string(h.Request.Type()))] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}
	go router.Run()
	return router, nil
}

func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		if c := canonicalType(t); c != "" {
			set[c] = true
		}
	}
	return set
}

// canonicalType maps CDP resource types and their configuration plurals
// ("images", "fonts") to one lower-case name. XHR and Fetch are never
// blockable since they carry the API traffic being captured.
func canonicalType(t string) string {
	switch t = strings.ToLower(t); t {
	case "images":
		return "image"
	case "fonts":
		return "font"
	case "stylesheets":
		return "stylesheet"
	case "xhr", "fetch":
		return ""
	}
	return t
}
