package aggregate

import "github.com/vburojevic/qcdash/internal/domain"

// Sentiment labels, most negative first
const (
	SentimentVeryNegative = "Very Negative"
	SentimentNegative     = "Negative"
	SentimentNeutral      = "Neutral"
	SentimentPositive     = "Positive"
	SentimentVeryPositive = "Very Positive"
)

// SentimentLabel maps a score in [-1, 1] onto one of five ordered labels
func SentimentLabel(score float64) string {
	switch {
	case score <= -0.4:
		return SentimentVeryNegative
	case score <= -0.1:
		return SentimentNegative
	case score <= 0.1:
		return SentimentNeutral
	case score <= 0.4:
		return SentimentPositive
	default:
		return SentimentVeryPositive
	}
}

// CustomerComments groups records by issue type. Count is the group size and
// Sentiment is the mean over the Scored members that carry a score. A
// category with no scored member has no Sentiment and no Label.
func CustomerComments(records []domain.Record) []domain.CommentSentiment {
	index := make(map[string]int)
	var out []domain.CommentSentiment
	var scores [][]float64

	for _, r := range records {
		if r.IssueType == "" {
			continue
		}
		i, ok := index[r.IssueType]
		if !ok {
			i = len(out)
			index[r.IssueType] = i
			out = append(out, domain.CommentSentiment{Category: r.IssueType})
			scores = append(scores, nil)
		}
		out[i].Count++
		if r.Sentiment != nil {
			scores[i] = append(scores[i], *r.Sentiment)
		}
	}

	for i := range out {
		out[i].Scored = len(scores[i])
		if out[i].Scored == 0 {
			continue
		}
		m := mean(scores[i])
		out[i].Sentiment = &m
		out[i].Label = SentimentLabel(m)
	}
	return out
}

// BlendSentiment is the mean sentiment of categories weighted by scored
// members. Documents without scored counts are weighted by Count.
func BlendSentiment(categories []domain.CommentSentiment) float64 {
	var sum float64
	total := 0
	for _, c := range categories {
		if c.Sentiment == nil {
			continue
		}
		weight := c.Scored
		if weight == 0 {
			weight = c.Count
		}
		if weight <= 0 {
			continue
		}
		sum += *c.Sentiment * float64(weight)
		total += weight
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}
