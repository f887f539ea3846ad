package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"supplyrag/internal/adapter/retry"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// RelationTypes are the relation_type values the model may emit.
var RelationTypes = []string{
	"supplier",
	"contract_manufacturer",
	"distributor",
	"logistics",
	"cloud_provider",
	"software_provider",
}

const (
	defaultConfidence = 0.5
	excerptLen        = 500
)

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// Extractor turns ranked passages into relationship records with a
// generative model.
type Extractor struct {
	llm    port.LLM
	policy retry.Policy
	log    *slog.Logger
}

func New(llm port.LLM, policy retry.Policy, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{llm: llm, policy: policy, log: log}
}

// Extract prompts the model with the candidates and parses its answer.
// Provider failures are returned; an unparseable answer is logged and
// yields no relationships.
func (e *Extractor) Extract(ctx context.Context, candidates []domain.ScoredCandidate) ([]domain.Relationship, error) {
	if len(candidates) == 0 {
		return []domain.Relationship{}, nil
	}

	prompt := BuildPrompt(candidates)
	var response string
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		var err error
		response, err = e.llm.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("extraction model %s failed: %w", e.llm.ModelName(), err)
	}

	rels, err := ParseRelationships(response)
	if err != nil {
		e.log.Warn("could not parse extraction response",
			slog.String("error", err.Error()),
			slog.String("response", excerpt(response)))
		return []domain.Relationship{}, nil
	}
	return rels, nil
}

// BuildPrompt lists the candidates in rank order with their document and
// chunk IDs and asks for a JSON array of relationships.
func BuildPrompt(candidates []domain.ScoredCandidate) string {
	var ctxb strings.Builder
	for i, c := range candidates {
		docID := c.Chunk.DocID
		if docID == "" {
			docID = "unknown"
		}
		chunkID := c.Chunk.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("chunk_%d", i+1)
		}
		if i > 0 {
			ctxb.WriteString("\n")
		}
		fmt.Fprintf(&ctxb, "[Chunk %d - Document: %s - ChunkID: %s]\n%s\n", i+1, docID, chunkID, c.Chunk.Text)
	}

	quoted := make([]string, len(RelationTypes))
	for i, rt := range RelationTypes {
		quoted[i] = `"` + rt + `"`
	}

	return fmt.Sprintf(promptTemplate, strings.Join(quoted, ", "), ctxb.String())
}

const promptTemplate = `Extract explicit buyer-supplier, contract manufacturing, distributors, logistics, and cloud/software provider relationships from the following document chunks.

Return ONLY valid JSON array of relationship objects. Each relationship object must have exactly these fields:
- buyer: string (canonical ID/name of the buyer company, e.g., "NVIDIA")
- supplier: string (canonical ID/name of the supplier company, e.g., "TSMC")
- relation_type: string (must be one of: %s)
- role: string (one of: "foundry", "HBM", "OSAT", "logistics", "distributor", "cloud", "software", "contract_manufacturer", or other appropriate role)
- evidence_span: string (exact quoted text from the document that supports this relationship)
- doc_url: string (format as "doc_id.pdf" where doc_id comes from the chunk metadata, e.g., "nvidia-10k.pdf")
- effective_start: string or null (date in YYYY-MM-DD format if mentioned, otherwise null)
- effective_end: string or null (date in YYYY-MM-DD format if mentioned, otherwise null)
- confidence: float (0.0 to 1.0, based on how explicit and clear the relationship is)

Only extract relationships that are explicitly stated in the text. Do not infer relationships that are not clearly mentioned. Only extract relationships where the buyer is an actual explicit company name and the supplier is also an explicit company name.
If no relationships are found, return an empty array [].

Document Chunks:
%s
Return ONLY the JSON array, no other text:`

type rawRelationship struct {
	Buyer          string   `json:"buyer"`
	Supplier       string   `json:"supplier"`
	RelationType   string   `json:"relation_type"`
	Role           string   `json:"role"`
	EvidenceSpan   string   `json:"evidence_span"`
	DocURL         string   `json:"doc_url"`
	EffectiveStart *string  `json:"effective_start"`
	EffectiveEnd   *string  `json:"effective_end"`
	Confidence     *float64 `json:"confidence"`
}

// ParseRelationships pulls the JSON array out of a model answer, tolerating
// markdown fences and surrounding prose. Non-object elements and records
// without both buyer and supplier are dropped.
func ParseRelationships(response string) ([]domain.Relationship, error) {
	text := strings.TrimSpace(response)
	jsonStr := text
	if m := jsonArray.FindString(text); m != "" {
		jsonStr = m
	} else if i := strings.Index(text, "["); i >= 0 {
		jsonStr = text[i:]
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	out := make([]domain.Relationship, 0, len(items))
	for _, item := range items {
		var raw rawRelationship
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		if raw.Buyer == "" || raw.Supplier == "" {
			continue
		}
		confidence := defaultConfidence
		if raw.Confidence != nil {
			confidence = *raw.Confidence
		}
		out = append(out, domain.Relationship{
			Buyer:          raw.Buyer,
			Supplier:       raw.Supplier,
			RelationType:   raw.RelationType,
			Role:           raw.Role,
			EvidenceSpan:   raw.EvidenceSpan,
			DocURL:         raw.DocURL,
			EffectiveStart: raw.EffectiveStart,
			EffectiveEnd:   raw.EffectiveEnd,
			Confidence:     confidence,
		})
	}
	return out, nil
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen])
}
