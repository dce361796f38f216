// Package eventparser extracts a calendar event from a short English or
// Japanese sentence such as "明日10時 渋谷で打ち合わせ" or
// "meeting tomorrow 9:30am at Shinjuku Station".
//
// Parsing is keyword based and best effort. Text without any date or time
// yields no event.
package eventparser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/travel"
)

// Defaults for fields the text does not mention.
const (
	DefaultHour   = 9
	DefaultMinute = 0
	DefaultTitle  = "Event"
)

// DefaultPlaceKeywords are well-known Tokyo areas recognized verbatim.
func DefaultPlaceKeywords() []string {
	return []string{
		"渋谷", "新宿", "池袋", "上野", "東京", "本郷", "銀座", "六本木",
		"表参道", "原宿", "代々木", "恵比寿", "目黒", "品川",
		"Shibuya", "Shinjuku", "Ikebukuro", "Ueno", "Tokyo", "Hongo", "Ginza",
		"Roppongi", "Omotesando", "Harajuku", "Yoyogi", "Ebisu", "Meguro", "Shinagawa",
	}
}

var (
	dateRe = regexp.MustCompile(`(?i)(明後日|明日|今日|day after tomorrow|tomorrow|today|(\d{1,2})月(\d{1,2})日|(\d{1,2})/(\d{1,2}))`)

	jaTimeRe = regexp.MustCompile(`(\d{1,2})時(?:(\d{1,2})分|(半))?`)
	enTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b|\b(\d{1,2})\s*(am|pm)\b`)

	placeRe = regexp.MustCompile(`([^\s]+(?:駅|大学|ビル|ホール|会議室|カフェ|レストラン))|\b((?:[A-Z][\w'-]*\s)+(?:[Ss]tation|[Uu]niversity|[Bb]uilding|[Hh]all|[Cc]af[eé]|[Rr]estaurant))`)

	titleRe = regexp.MustCompile(`(?i)(会議|ミーティング|打ち合わせ|予定|イベント|セミナー|勉強会|飲み会|ランチ|ディナー|カフェ|映画|買い物|散歩|運動|ジム|トレーニング|レッスン|授業|講義|試験|面接|面談|デート|遊び|\bmeeting\b|\bappointment\b|\bseminar\b|\bworkshop\b|\blunch\b|\bdinner\b|\bmovie\b|\bshopping\b|\bgym\b|\bworkout\b|\blesson\b|\bclass\b|\blecture\b|\bexam\b|\binterview\b|\bdate\b)`)

	connectorRe  = regexp.MustCompile(`(?i)\s+(at|on|in|by)\s*$|^\s*(at|on|in)\s+|[でにへ]\s*$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// modeRules are checked in order; the first match wins.
var modeRules = []struct {
	mode    travel.Mode
	pattern *regexp.Regexp
}{
	{travel.ModeTrain, regexp.MustCompile(`(?i)電車|JR|地下鉄|\btrain\b|\bsubway\b|\bmetro\b`)},
	{travel.ModeBus, regexp.MustCompile(`(?i)バス|\bbus\b`)},
	{travel.ModeWalk, regexp.MustCompile(`(?i)歩き|徒歩|\bwalk(ing)?\b|\bon foot\b`)},
	{travel.ModeBike, regexp.MustCompile(`(?i)自転車|\bbike\b|\bcycl(e|ing)\b`)},
	{travel.ModeCar, regexp.MustCompile(`(?i)車|\bcar\b|\bdrive\b|\btaxi\b`)},
}

// Config configures a Parser.
type Config struct {
	// Now anchors relative dates (default time.Now).
	Now func() time.Time

	// Location interprets wall-clock times (default time.Local).
	Location *time.Location

	// PlaceKeywords are matched before the suffix patterns (default DefaultPlaceKeywords).
	PlaceKeywords []string
}

// Parser turns free text into event drafts.
type Parser struct {
	now    func() time.Time
	loc    *time.Location
	places []string
}

// New creates a Parser.
func New(cfg Config) *Parser {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	places := cfg.PlaceKeywords
	if places == nil {
		places = DefaultPlaceKeywords()
	}
	return &Parser{now: now, loc: loc, places: places}
}

// Parse returns a draft for text, or nil when it names neither a date nor a
// time. The draft has no ID; it starts at the parsed time (09:00 by
// default) and lasts DefaultDuration.
func (p *Parser) Parse(text string) *event.Draft {
	text = strings.TrimSpace(text)
	now := p.now().In(p.loc)

	dateSpan, day, dateFound := p.parseDate(text, now)
	timeSpan, hour, minute, timeFound := parseTime(text)
	if !dateFound && !timeFound {
		return nil
	}

	place := p.parsePlace(text)
	title := parseTitle(text, place, dateSpan, timeSpan)

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.loc)

	return &event.Draft{
		Title:         title,
		Start:         start,
		End:           start.Add(event.DefaultDuration),
		Place:         place,
		BufferMinutes: event.DefaultBufferMinutes,
		Mode:          parseMode(text),
	}
}

// parseDate returns the matched text and the day it denotes. Without a match
// the day is today.
func (p *Parser) parseDate(text string, now time.Time) (string, time.Time, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return "", now, false
	}

	switch strings.ToLower(m[1]) {
	case "今日", "today":
		return m[0], now, true
	case "明日", "tomorrow":
		return m[0], now.AddDate(0, 0, 1), true
	case "明後日", "day after tomorrow":
		return m[0], now.AddDate(0, 0, 2), true
	}

	month, day := m[2], m[3]
	if month == "" {
		month, day = m[4], m[5]
	}
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", now, false
	}
	return m[0], time.Date(now.Year(), time.Month(mo), d, 0, 0, 0, 0, p.loc), true
}

// parseTime returns the matched text and the wall-clock time. Without a match
// the time is DefaultHour:DefaultMinute.
func parseTime(text string) (string, int, int, bool) {
	if m := jaTimeRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		switch {
		case m[2] != "":
			minute, _ = strconv.Atoi(m[2])
		case m[3] != "":
			minute = 30
		}
		if validClock(hour, minute) {
			return m[0], hour, minute, true
		}
	}

	if m := enTimeRe.FindStringSubmatch(text); m != nil {
		var hour, minute int
		var meridiem string
		if m[1] != "" {
			hour, _ = strconv.Atoi(m[1])
			minute, _ = strconv.Atoi(m[2])
			meridiem = m[3]
		} else {
			hour, _ = strconv.Atoi(m[4])
			meridiem = m[5]
		}
		hour, ok := applyMeridiem(hour, strings.ToLower(meridiem))
		if ok && validClock(hour, minute) {
			return m[0], hour, minute, true
		}
	}

	return "", DefaultHour, DefaultMinute, false
}

func applyMeridiem(hour int, meridiem string) (int, bool) {
	switch meridiem {
	case "":
		return hour, true
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		return hour % 12, true
	default:
		if hour < 1 || hour > 12 {
			return 0, false
		}
		return hour%12 + 12, true
	}
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

func (p *Parser) parsePlace(text string) string {
	for _, keyword := range p.places {
		if strings.Contains(text, keyword) {
			return keyword
		}
	}
	if m := placeRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return strings.TrimSpace(m[2])
	}
	return event.UnspecifiedPlace
}

// parseTitle returns the first activity keyword, or the text left after
// removing the date, time and place.
func parseTitle(text, place, dateSpan, timeSpan string) string {
	if m := titleRe.FindString(text); m != "" {
		return m
	}

	rest := text
	for _, span := range []string{dateSpan, timeSpan} {
		if span != "" {
			rest = strings.Replace(rest, span, " ", 1)
		}
	}
	if place != event.UnspecifiedPlace {
		rest = strings.Replace(rest, place, " ", 1)
	}

	rest = whitespaceRe.ReplaceAllString(rest, " ")
	for {
		trimmed := strings.TrimSpace(connectorRe.ReplaceAllString(rest, ""))
		if trimmed == strings.TrimSpace(rest) {
			break
		}
		rest = trimmed
	}
	rest = strings.TrimSpace(rest)

	if rest == "" {
		return DefaultTitle
	}
	return rest
}

func parseMode(text string) travel.Mode {
	for _, rule := range modeRules {
		if rule.pattern.MatchString(text) {
			return rule.mode
		}
	}
	return event.DefaultMode
}

var defaultParser = New(Config{})

// Parse parses text with default settings.
func Parse(text string) *event.Draft {
	return defaultParser.Parse(text)
}
