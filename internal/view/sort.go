package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/derickschaefer/tubestats/internal/model"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort names a key and a direction.
type Sort struct {
	Key string    `json:"key"`
	Dir Direction `json:"dir"`
}

var (
	DefaultVideoSort   = Sort{Key: "views", Dir: Desc}
	DefaultCommentSort = Sort{Key: "date", Dir: Desc}
)

// videoKeys maps sort keys to values; each key yields either a string or
// a float64.
var videoKeys = map[string]func(model.Video) interface{}{
	"id":           func(v model.Video) interface{} { return v.ID },
	"title":        func(v model.Video) interface{} { return v.Title },
	"views":        func(v model.Video) interface{} { return v.Views },
	"likes":        func(v model.Video) interface{} { return v.Likes },
	"dislikes":     func(v model.Video) interface{} { return v.Dislikes },
	"revenue":      func(v model.Video) interface{} { return v.Revenue },
	"comments":     func(v model.Video) interface{} { return v.Comments },
	"watchMinutes": func(v model.Video) interface{} { return v.WatchMinutes },
}

var commentKeys = map[string]func(model.Comment) interface{}{
	"id":         func(c model.Comment) interface{} { return c.ID },
	"author":     func(c model.Comment) interface{} { return c.Author },
	"text":       func(c model.Comment) interface{} { return c.Text },
	"date":       func(c model.Comment) interface{} { return c.Date },
	"likes":      func(c model.Comment) interface{} { return c.Likes },
	"videoTitle": func(c model.Comment) interface{} { return c.VideoTitle },
}

// ParseSort validates key against the video or comment keys. An empty
// key returns def; an empty direction defaults to desc.
func ParseSort(key, dir string, forComments bool, def Sort) (Sort, error) {
	if key == "" {
		if dir != "" {
			def.Dir = Direction(strings.ToLower(dir))
		}
		return checkDir(def)
	}
	var ok bool
	if forComments {
		_, ok = commentKeys[key]
	} else {
		_, ok = videoKeys[key]
	}
	if !ok {
		return Sort{}, fmt.Errorf("unknown sort key %q", key)
	}
	s := Sort{Key: key, Dir: Direction(strings.ToLower(dir))}
	if s.Dir == "" {
		s.Dir = Desc
	}
	return checkDir(s)
}

func checkDir(s Sort) (Sort, error) {
	if s.Dir != Asc && s.Dir != Desc {
		return Sort{}, fmt.Errorf("unknown sort direction %q (use asc or desc)", s.Dir)
	}
	return s, nil
}

func less(a, b interface{}) (lt, gt bool) {
	switch x := a.(type) {
	case string:
		y := b.(string)
		return x < y, x > y
	case float64:
		y := b.(float64)
		return x < y, x > y
	}
	return false, false
}

// SortVideos returns a stably sorted copy. Unknown keys leave the order
// unchanged.
func SortVideos(videos []model.Video, s Sort) []model.Video {
	out := make([]model.Video, len(videos))
	copy(out, videos)
	get, ok := videoKeys[s.Key]
	if !ok {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		lt, gt := less(get(out[i]), get(out[j]))
		if s.Dir == Asc {
			return lt
		}
		return gt
	})
	return out
}

// SortComments returns a stably sorted copy. Unknown keys leave the order
// unchanged.
func SortComments(comments []model.Comment, s Sort) []model.Comment {
	out := make([]model.Comment, len(comments))
	copy(out, comments)
	get, ok := commentKeys[s.Key]
	if !ok {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		lt, gt := less(get(out[i]), get(out[j]))
		if s.Dir == Asc {
			return lt
		}
		return gt
	})
	return out
}

// Page returns the first n items, or all of them when n <= 0.
func Page[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

// TopVideos keeps the first limit videos in source ranking order and
// then sorts that page.
func TopVideos(videos []model.Video, limit int, s Sort) []model.Video {
	return SortVideos(Page(videos, limit), s)
}

// RecentComments sorts all comments and then keeps the first limit.
func RecentComments(comments []model.Comment, limit int, s Sort) []model.Comment {
	return Page(SortComments(comments, s), limit)
}
