package learning

import (
	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/simtext"
)

// clusterQuestions groups unanswered questions by word overlap in a single
// greedy pass. Each question joins the first existing cluster whose
// representative it overlaps at or above the threshold, otherwise it seeds a
// new cluster. The pass is order-dependent on purpose: input arrives sorted
// by occurrence count, so the hottest phrasing of a question becomes the
// representative.
func clusterQuestions(questions []model.UnansweredQuestion, threshold float64) []model.QuestionCluster {
	clusters := make([]model.QuestionCluster, 0, len(questions))

	for _, q := range questions {
		text := q.NormalizedText
		if text == "" {
			text = simtext.Normalize(q.OriginalText)
		}
		if text == "" {
			continue
		}

		occurrences := q.OccurrenceCount
		if occurrences < 1 {
			occurrences = 1
		}

		joined := false
		for i := range clusters {
			if simtext.Overlap(clusters[i].RepresentativeText, text) >= threshold {
				clusters[i].MemberTexts = append(clusters[i].MemberTexts, text)
				clusters[i].TotalOccurrences += occurrences
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, model.QuestionCluster{
				RepresentativeText: text,
				MemberTexts:        []string{text},
				TotalOccurrences:   occurrences,
			})
		}
	}
	return clusters
}
