// SPDX-License-Identifier: GPL-3.0-only

package commons

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SafeRedirect returns next when it is a local absolute path, fallback otherwise.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}

func ParsePagination(pageParam, sizeParam string, defaultSize, maxSize int) (page, pageSize int) {
	page, pageSize = 1, defaultSize
	if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(sizeParam); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	// keep (page-1)*pageSize inside an int32 offset
	if maxPage := math.MaxInt32/pageSize + 1; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}
