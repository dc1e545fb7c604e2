package zhszjj

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

var (
	// containerKeys are checked in order; the first one present wins.
	containerKeys = []string{"data", "list", "items"}

	nameAliases      = []string{"projectName", "name"}
	availableAliases = []string{"availableUnits", "saleCount"}
	totalAliases     = []string{"totalUnits", "totalCount"}
	developerAliases = []string{"developer", "company"}
	districtAliases  = []string{"district", "area"}

	// availableRegexp captures the "待售: N" unit count inside a listing's info block.
	availableRegexp = regexp.MustCompile(`待售[：:\s]*(\d+)`)
)

const (
	containerClass = "house-info"
	nameClass      = "overflow"
	infoClass      = "house-info-main"
)

var errNegativeCount = errors.New("negative unit count")

// ParseResult is what the parser extracted from one payload.
type ParseResult struct {
	Kind    models.PayloadKind
	Records []models.ListingRecord
	Skipped int
}

// Parser turns a RawPayload into listing records.
type Parser struct {
	logger *utils.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse dispatches on the payload kind. Malformed entries are skipped; an
// error is returned only when the payload shape itself is unrecognised.
func (p *Parser) Parse(payload models.RawPayload) (*ParseResult, error) {
	var (
		res *ParseResult
		err error
	)
	switch payload.Kind {
	case models.PayloadJSON:
		res, err = p.parseJSON(payload.JSON)
	case models.PayloadHTML:
		res, err = p.parseHTML(payload.HTML)
	default:
		return nil, fmt.Errorf("%w: payload kind %d", models.ErrParseFormat, payload.Kind)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("[parser] %s payload: %d records, %d skipped", res.Kind, len(res.Records), res.Skipped)
	return res, nil
}

func (p *Parser) parseJSON(obj map[string]any) (*ParseResult, error) {
	var (
		items any
		key   string
	)
	for _, k := range containerKeys {
		if v, ok := obj[k]; ok {
			items, key = v, k
			break
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%w: JSON object has none of %v", models.ErrParseFormat, containerKeys)
	}

	res := &ParseResult{Kind: models.PayloadJSON}
	if items == nil {
		return res, nil
	}

	arr, ok := items.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not an array", models.ErrParseFormat, key, items)
	}

	res.Records = make([]models.ListingRecord, 0, len(arr))
	for i, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			p.logger.Debug("[parser] %s[%d] is %T, skipping", key, i, el)
			res.Skipped++
			continue
		}

		rec, err := recordFromJSON(m)
		if err != nil {
			p.logger.Debug("[parser] %s[%d] malformed: %v", key, i, err)
			res.Skipped++
			continue
		}
		if rec.Name == "" {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func recordFromJSON(m map[string]any) (models.ListingRecord, error) {
	rec := models.ListingRecord{
		Name:      firstString(m, nameAliases),
		Developer: firstString(m, developerAliases),
		District:  firstString(m, districtAliases),
	}

	available, _, err := firstInt(m, availableAliases)
	if err != nil {
		return rec, fmt.Errorf("available units: %w", err)
	}
	rec.AvailableUnits = available

	total, present, err := firstInt(m, totalAliases)
	if err != nil {
		return rec, fmt.Errorf("total units: %w", err)
	}
	if present {
		rec.TotalUnits = &total
	}
	return rec, nil
}

// firstString returns the first alias holding a non-blank scalar, trimmed.
func firstString(m map[string]any, aliases []string) string {
	for _, k := range aliases {
		var s string
		switch v := m[k].(type) {
		case string:
			s = v
		case json.Number:
			s = v.String()
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// firstInt returns the first alias holding a non-null value. Values that are
// not numbers count as zero; negative numbers are an error.
func firstInt(m map[string]any, aliases []string) (n int, present bool, err error) {
	for _, k := range aliases {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		n = toInt(v)
		if n < 0 {
			return 0, true, errNegativeCount
		}
		return n, true, nil
	}
	return 0, false, nil
}

func toInt(v any) int {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return clampInt(float64(i))
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	return clampInt(f)
}

func clampInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func (p *Parser) parseHTML(doc string) (*ParseResult, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, fmt.Errorf("%w: empty document", models.ErrParseFormat)
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseFormat, err)
	}

	res := &ParseResult{Kind: models.PayloadHTML}
	for i, container := range findAll(root, func(n *html.Node) bool { return hasClass(n, containerClass) }) {
		rec, ok := p.recordFromContainer(container)
		if !ok {
			p.logger.Debug("[parser] listing container #%d yielded no name/count, skipping", i)
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (p *Parser) recordFromContainer(container *html.Node) (models.ListingRecord, bool) {
	link := findFirst(container, func(n *html.Node) bool {
		return n.Data == "a" && hasClass(n, nameClass)
	})
	if link == nil {
		return models.ListingRecord{}, false
	}
	name := strings.Join(strings.Fields(textContent(link)), " ")
	if name == "" {
		return models.ListingRecord{}, false
	}

	info := findFirst(container, func(n *html.Node) bool { return hasClass(n, infoClass) })
	if info == nil {
		return models.ListingRecord{}, false
	}
	match := availableRegexp.FindStringSubmatch(textContent(info))
	if len(match) < 2 {
		return models.ListingRecord{}, false
	}
	units, err := strconv.Atoi(match[1])
	if err != nil {
		return models.ListingRecord{}, false
	}

	return models.ListingRecord{Name: name, AvailableUnits: units}, true
}

// findAll collects matching elements without descending into a match.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst returns the first matching descendant element in document order.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
