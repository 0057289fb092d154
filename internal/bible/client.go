// Package bible fetches passage text from API.Bible.
package bible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrContentUnavailable means the verse text could not be obtained: no
// API key, unknown book, or an API failure.
var ErrContentUnavailable = errors.New("bible: content unavailable")

type Client struct {
	baseURL string
	apiKey  string
	bibleID string
	client  *http.Client
}

func NewClient(baseURL, apiKey, bibleID string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		bibleID: bibleID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type passageResponse struct {
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// Fetch returns the text of book chapter:startVerse[-endVerse].
func (c *Client) Fetch(ctx context.Context, book string, chapter, startVerse, endVerse int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: BIBLE_API_KEY not configured", ErrContentUnavailable)
	}

	bookID, ok := bookIDs[strings.ToLower(book)]
	if !ok {
		return "", fmt.Errorf("%w: unknown book %q", ErrContentUnavailable, book)
	}

	if endVerse < startVerse {
		endVerse = startVerse
	}
	passageID := fmt.Sprintf("%s.%d.%d", bookID, chapter, startVerse)
	if endVerse != startVerse {
		passageID = fmt.Sprintf("%s.%d.%d-%s.%d.%d", bookID, chapter, startVerse, bookID, chapter, endVerse)
	}

	params := url.Values{
		"content-type":            {"text"},
		"include-notes":           {"false"},
		"include-titles":          {"false"},
		"include-chapter-numbers": {"false"},
		"include-verse-numbers":   {"true"},
	}
	reqURL := fmt.Sprintf("%s/bibles/%s/passages/%s?%s", c.baseURL, c.bibleID, passageID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status code %d body=%q", ErrContentUnavailable, resp.StatusCode, string(body))
	}

	var pr passageResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("%w: failed to decode json: %v body=%q", ErrContentUnavailable, err, string(body))
	}
	text := strings.TrimSpace(pr.Data.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty passage content for %s", ErrContentUnavailable, passageID)
	}
	return text, nil
}

// Books lists the selectable book names.
func Books() []string {
	return []string{
		"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
		"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
		"1 Kings", "2 Kings", "Psalms", "Proverbs", "Isaiah", "Jeremiah",
		"Matthew", "Mark", "Luke", "John", "Acts", "Romans",
		"1 Corinthians", "2 Corinthians", "Galatians", "Ephesians",
		"Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians",
		"1 Timothy", "2 Timothy", "Titus", "Hebrews", "James",
		"1 Peter", "2 Peter", "1 John", "2 John", "3 John", "Jude", "Revelation",
	}
}

// Book-name to API.Bible book ID, lowercase keys, common abbreviations
// included.
var bookIDs = map[string]string{
	"genesis": "GEN", "gen": "GEN",
	"exodus": "EXO", "exo": "EXO",
	"leviticus": "LEV", "lev": "LEV",
	"numbers": "NUM", "num": "NUM",
	"deuteronomy": "DEU", "deu": "DEU",
	"joshua": "JOS", "jos": "JOS",
	"judges": "JDG", "jdg": "JDG",
	"ruth": "RUT", "rut": "RUT",
	"1 samuel": "1SA", "1sa": "1SA", "1 sam": "1SA",
	"2 samuel": "2SA", "2sa": "2SA", "2 sam": "2SA",
	"1 kings": "1KI", "1ki": "1KI",
	"2 kings": "2KI", "2ki": "2KI",
	"psalms": "PSA", "psa": "PSA", "psalm": "PSA",
	"proverbs": "PRO", "pro": "PRO",
	"isaiah": "ISA", "isa": "ISA",
	"jeremiah": "JER", "jer": "JER",
	"matthew": "MAT", "mat": "MAT", "matt": "MAT",
	"mark": "MRK", "mrk": "MRK",
	"luke": "LUK", "luk": "LUK",
	"john": "JHN", "jhn": "JHN",
	"acts": "ACT", "act": "ACT",
	"romans": "ROM", "rom": "ROM",
	"1 corinthians": "1CO", "1co": "1CO", "1 cor": "1CO",
	"2 corinthians": "2CO", "2co": "2CO", "2 cor": "2CO",
	"galatians": "GAL", "gal": "GAL",
	"ephesians": "EPH", "eph": "EPH",
	"philippians": "PHP", "php": "PHP",
	"colossians": "COL", "col": "COL",
	"1 thessalonians": "1TH", "1th": "1TH",
	"2 thessalonians": "2TH", "2th": "2TH",
	"1 timothy": "1TI", "1ti": "1TI", "1 tim": "1TI",
	"2 timothy": "2TI", "2ti": "2TI", "2 tim": "2TI",
	"titus": "TIT", "tit": "TIT",
	"hebrews": "HEB", "heb": "HEB",
	"james": "JAS", "jas": "JAS",
	"1 peter": "1PE", "1pe": "1PE", "1 pet": "1PE",
	"2 peter": "2PE", "2pe": "2PE", "2 pet": "2PE",
	"1 john": "1JN", "1jn": "1JN",
	"2 john": "2JN", "2jn": "2JN",
	"3 john": "3JN", "3jn": "3JN",
	"jude": "JUD", "jud": "JUD",
	"revelation": "REV", "rev": "REV",
}
