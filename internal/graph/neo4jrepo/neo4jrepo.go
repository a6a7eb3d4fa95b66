// Package neo4jrepo implements graph.Repository against Neo4j via the
// official Bolt driver. Every method opens a short-lived session, runs one
// managed transaction, and maps Cypher records back onto the graph package's
// plain structs — no driver types leak past this package's boundary.
package neo4jrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
)

// Repository is a Neo4j-backed graph.Repository.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
}

// New opens a driver against uri and verifies connectivity. database may be
// empty to use the server's default database.
func New(ctx context.Context, uri, username, password, database string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "create neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "connect to neo4j", err)
	}
	return &Repository{driver: driver, database: database}, nil
}

// Close releases the underlying driver.
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: r.database})
}

func (r *Repository) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: r.database})
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.driver.VerifyConnectivity(ctx); err != nil {
		return apperrors.Wrap(apperrors.Transient, "ping neo4j", err)
	}
	return nil
}

// --- Papers ---

func (r *Repository) UpsertPaper(ctx context.Context, p graph.Paper) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (p:Paper {doi: $doi})
			SET p.title = $title, p.abstract = $abstract, p.year = $year, p.venue = $venue,
			    p.arxiv_id = $arxivId, p.openalex_id = $openalexId, p.s2_id = $s2Id,
			    p.pdf_url = $pdfUrl, p.is_open_access = $isOpenAccess, p.citation_count = $citationCount,
			    p.fields_of_study = $fieldsOfStudy, p.source = $source, p.retrieved_at = $retrievedAt
		`, map[string]any{
			"doi": p.DOI, "title": p.Title, "abstract": p.Abstract, "year": p.Year, "venue": p.Venue,
			"arxivId": p.ArxivID, "openalexId": p.OpenAlexID, "s2Id": p.S2ID,
			"pdfUrl": p.PDFURL, "isOpenAccess": p.IsOpenAccess, "citationCount": p.CitationCount,
			"fieldsOfStudy": p.FieldsOfStudy, "source": string(p.Source), "retrievedAt": toNeoTime(p.RetrievedAt),
		})
		if err != nil {
			return nil, err
		}

		for _, a := range p.Authors {
			_, err := tx.Run(ctx, `
				MATCH (p:Paper {doi: $doi})
				MATCH (a:Author {id: $authorId})
				MERGE (p)-[rel:AUTHORED_BY]->(a)
				SET rel.position = $position
			`, map[string]any{"doi": p.DOI, "authorId": a.AuthorID, "position": a.Position})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "upsert paper", err)
	}
	return nil
}

func (r *Repository) GetPaper(ctx context.Context, doi string) (graph.Paper, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (p:Paper {doi: $doi})
			OPTIONAL MATCH (p)-[rel:AUTHORED_BY]->(a:Author)
			RETURN p, collect({authorId: a.id, position: rel.position}) as authors
		`, map[string]any{"doi": doi})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		return recordToPaper(res.Record())
	})
	if err != nil {
		return graph.Paper{}, false, apperrors.Wrap(apperrors.Internal, "get paper", err)
	}
	if out == nil {
		return graph.Paper{}, false, nil
	}
	return out.(graph.Paper), true, nil
}

func (r *Repository) ListPapers(ctx context.Context, limit, offset int) ([]graph.Paper, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (p:Paper)
			OPTIONAL MATCH (p)-[rel:AUTHORED_BY]->(a:Author)
			WITH p, collect({authorId: a.id, position: rel.position}) as authors
			ORDER BY p.doi
			SKIP $offset LIMIT $limit
			RETURN p, authors
		`, map[string]any{"offset": offsetOrZero(offset), "limit": limitOrAll(limit)})
		if err != nil {
			return nil, err
		}
		var papers []graph.Paper
		for res.Next(ctx) {
			p, err := recordToPaper(res.Record())
			if err != nil {
				return nil, err
			}
			papers = append(papers, p.(graph.Paper))
		}
		return papers, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list papers", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]graph.Paper), nil
}

func recordToPaper(record *neo4j.Record) (any, error) {
	node, ok := record.Get("p")
	if !ok {
		return nil, fmt.Errorf("record missing paper node")
	}
	n := node.(neo4j.Node)
	props := n.Props

	p := graph.Paper{
		DOI:           stringProp(props, "doi"),
		Title:         stringProp(props, "title"),
		Abstract:      stringProp(props, "abstract"),
		Year:          intProp(props, "year"),
		Venue:         stringProp(props, "venue"),
		ArxivID:       stringProp(props, "arxiv_id"),
		OpenAlexID:    stringProp(props, "openalex_id"),
		S2ID:          stringProp(props, "s2_id"),
		PDFURL:        stringProp(props, "pdf_url"),
		IsOpenAccess:  boolProp(props, "is_open_access"),
		CitationCount: intProp(props, "citation_count"),
		FieldsOfStudy: stringSliceProp(props, "fields_of_study"),
		Source:        graph.PaperSource(stringProp(props, "source")),
		RetrievedAt:   timeProp(props, "retrieved_at"),
	}

	if authorsVal, ok := record.Get("authors"); ok {
		for _, raw := range authorsVal.([]any) {
			m := raw.(map[string]any)
			authorID, _ := m["authorId"].(string)
			if authorID == "" {
				continue
			}
			pos, _ := m["position"].(int64)
			p.Authors = append(p.Authors, graph.AuthorRef{AuthorID: authorID, Position: int(pos)})
		}
	}
	return p, nil
}

// --- Authors ---

func (r *Repository) UpsertAuthor(ctx context.Context, a graph.Author) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (a:Author {id: $id})
			SET a.name = $name, a.orcid = $orcid, a.affiliations = $affiliations
		`, map[string]any{"id": a.ID, "name": a.Name, "orcid": a.ORCID, "affiliations": a.Affiliations})
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "upsert author", err)
	}
	return nil
}

func (r *Repository) GetAuthor(ctx context.Context, id string) (graph.Author, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Author {id: $id}) RETURN a`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		node, _ := res.Record().Get("a")
		n := node.(neo4j.Node)
		return graph.Author{
			ID:           stringProp(n.Props, "id"),
			Name:         stringProp(n.Props, "name"),
			ORCID:        stringProp(n.Props, "orcid"),
			Affiliations: stringSliceProp(n.Props, "affiliations"),
		}, nil
	})
	if err != nil {
		return graph.Author{}, false, apperrors.Wrap(apperrors.Internal, "get author", err)
	}
	if out == nil {
		return graph.Author{}, false, nil
	}
	return out.(graph.Author), true, nil
}

// --- Problems ---

func (r *Repository) CreateProblem(ctx context.Context, p graph.Problem) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (x:Problem {id: $id}) RETURN x`, map[string]any{"id": p.ID})
		if err != nil {
			return nil, err
		}
		if check.Next(ctx) {
			return nil, apperrors.New(apperrors.Duplicate, "problem already exists: "+p.ID)
		}

		p.Version = 1
		if _, err := tx.Run(ctx, problemUpsertCypher, problemParams(p)); err != nil {
			return nil, err
		}
		_, err = tx.Run(ctx, `
			MATCH (prob:Problem {id: $id})
			MATCH (paper:Paper {doi: $doi})
			MERGE (prob)-[:EXTRACTED_FROM]->(paper)
		`, map[string]any{"id": p.ID, "doi": p.Evidence.SourceDOI})
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.Duplicate) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "create problem", err)
	}
	return nil
}

const problemUpsertCypher = `
	MERGE (prob:Problem {id: $id})
	SET prob.statement = $statement, prob.domain = $domain, prob.status = $status,
	    prob.assumptions = $assumptions, prob.datasets = $datasets, prob.metrics = $metrics,
	    prob.baselines = $baselines,
	    prob.constraint_text = $constraintText, prob.constraint_type = $constraintType, prob.constraint_confidence = $constraintConfidence,
	    prob.evidence_source_doi = $evidenceSourceDOI, prob.evidence_source_title = $evidenceSourceTitle,
	    prob.evidence_section = $evidenceSection, prob.evidence_quoted_text = $evidenceQuotedText,
	    prob.extraction_model = $extractionModel, prob.extraction_version = $extractionVersion,
	    prob.extraction_confidence = $extractionConfidence, prob.extraction_reviewed = $extractionReviewed,
	    prob.embedding = $embedding, prob.version = $version,
	    prob.created_at = $createdAt, prob.updated_at = $updatedAt
`

func problemParams(p graph.Problem) map[string]any {
	constraintText := make([]string, len(p.Constraints))
	constraintType := make([]string, len(p.Constraints))
	constraintConfidence := make([]float64, len(p.Constraints))
	for i, c := range p.Constraints {
		constraintText[i] = c.Text
		constraintType[i] = string(c.Type)
		constraintConfidence[i] = c.Confidence
	}

	now := time.Now()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	return map[string]any{
		"id": p.ID, "statement": p.Statement, "domain": p.Domain, "status": string(p.Status),
		"assumptions": p.Assumptions, "datasets": p.Datasets, "metrics": p.Metrics, "baselines": p.Baselines,
		"constraintText": constraintText, "constraintType": constraintType, "constraintConfidence": constraintConfidence,
		"evidenceSourceDOI": p.Evidence.SourceDOI, "evidenceSourceTitle": p.Evidence.SourceTitle,
		"evidenceSection": p.Evidence.Section, "evidenceQuotedText": p.Evidence.QuotedText,
		"extractionModel": p.ExtractionMetadata.Model, "extractionVersion": p.ExtractionMetadata.Version,
		"extractionConfidence": p.ExtractionMetadata.ConfidenceScore, "extractionReviewed": p.ExtractionMetadata.Reviewed,
		"embedding": toFloat64Slice(p.Embedding), "version": p.Version,
		"createdAt": toNeoTime(createdAt), "updatedAt": toNeoTime(updatedAt),
	}
}

func (r *Repository) GetProblem(ctx context.Context, id string) (graph.Problem, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (prob:Problem {id: $id}) RETURN prob`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		node, _ := res.Record().Get("prob")
		return recordToProblem(node.(neo4j.Node)), nil
	})
	if err != nil {
		return graph.Problem{}, false, apperrors.Wrap(apperrors.Internal, "get problem", err)
	}
	if out == nil {
		return graph.Problem{}, false, nil
	}
	return out.(graph.Problem), true, nil
}

func (r *Repository) UpdateProblem(ctx context.Context, p graph.Problem) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (prob:Problem {id: $id}) RETURN prob.version as version`, map[string]any{"id": p.ID})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, apperrors.New(apperrors.NotFound, "problem not found: "+p.ID)
		}
		version, _ := res.Record().Get("version")
		if v, ok := version.(int64); ok {
			p.Version = int(v) + 1
		} else {
			p.Version++
		}
		p.UpdatedAt = time.Now()
		_, err = tx.Run(ctx, problemUpsertCypher, problemParams(p))
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "update problem", err)
	}
	return nil
}

func (r *Repository) ListProblems(ctx context.Context, filter graph.ProblemFilter) ([]graph.Problem, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	params := map[string]any{"offset": offsetOrZero(filter.Offset), "limit": limitOrAll(filter.Limit)}
	where := ""
	if filter.Status != nil {
		where += " AND prob.status = $status"
		params["status"] = string(*filter.Status)
	}
	if filter.Domain != "" {
		where += " AND prob.domain = $domain"
		params["domain"] = filter.Domain
	}
	query := `MATCH (prob:Problem) WHERE true` + where + ` RETURN prob ORDER BY prob.id SKIP $offset LIMIT $limit`

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var problems []graph.Problem
		for res.Next(ctx) {
			node, _ := res.Record().Get("prob")
			problems = append(problems, recordToProblem(node.(neo4j.Node)))
		}
		return problems, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list problems", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]graph.Problem), nil
}

func (r *Repository) Stats(ctx context.Context) (graph.ProblemStats, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (prob:Problem)
			RETURN prob.status as status, prob.domain as domain
		`, nil)
		if err != nil {
			return nil, err
		}
		stats := graph.ProblemStats{ByStatus: make(map[graph.ProblemStatus]int), ByDomain: make(map[string]int)}
		for res.Next(ctx) {
			rec := res.Record()
			status, _ := rec.Get("status")
			domain, _ := rec.Get("domain")
			stats.Total++
			if s, ok := status.(string); ok {
				stats.ByStatus[graph.ProblemStatus(s)]++
			}
			if d, ok := domain.(string); ok {
				stats.ByDomain[d]++
			}
		}
		return stats, res.Err()
	})
	if err != nil {
		return graph.ProblemStats{}, apperrors.Wrap(apperrors.Internal, "problem stats", err)
	}
	return out.(graph.ProblemStats), nil
}

func recordToProblem(n neo4j.Node) graph.Problem {
	props := n.Props
	constraintText := stringSliceProp(props, "constraint_text")
	constraintType := stringSliceProp(props, "constraint_type")
	constraintConfidence := float64SliceProp(props, "constraint_confidence")
	constraints := make([]graph.Constraint, len(constraintText))
	for i := range constraintText {
		c := graph.Constraint{Text: constraintText[i]}
		if i < len(constraintType) {
			c.Type = graph.ConstraintType(constraintType[i])
		}
		if i < len(constraintConfidence) {
			c.Confidence = constraintConfidence[i]
		}
		constraints[i] = c
	}

	return graph.Problem{
		ID:          stringProp(props, "id"),
		Statement:   stringProp(props, "statement"),
		Domain:      stringProp(props, "domain"),
		Status:      graph.ProblemStatus(stringProp(props, "status")),
		Assumptions: stringSliceProp(props, "assumptions"),
		Constraints: constraints,
		Datasets:    stringSliceProp(props, "datasets"),
		Metrics:     stringSliceProp(props, "metrics"),
		Baselines:   stringSliceProp(props, "baselines"),
		Evidence: graph.Evidence{
			SourceDOI:   stringProp(props, "evidence_source_doi"),
			SourceTitle: stringProp(props, "evidence_source_title"),
			Section:     stringProp(props, "evidence_section"),
			QuotedText:  stringProp(props, "evidence_quoted_text"),
		},
		ExtractionMetadata: graph.ExtractionMetadata{
			Model:           stringProp(props, "extraction_model"),
			Version:         stringProp(props, "extraction_version"),
			ConfidenceScore: float64Prop(props, "extraction_confidence"),
			Reviewed:        boolProp(props, "extraction_reviewed"),
		},
		Embedding: float32SliceProp(props, "embedding"),
		Version:   intProp(props, "version"),
		CreatedAt: timeProp(props, "created_at"),
		UpdatedAt: timeProp(props, "updated_at"),
	}
}

// --- Mentions ---

func (r *Repository) CreateMention(ctx context.Context, m graph.ProblemMention) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (m:ProblemMention {id: $id})
			SET m.statement = $statement, m.embedding = $embedding, m.paper_doi = $paperDoi,
			    m.domain = $domain, m.review_status = $reviewStatus, m.concept_id = $conceptId
		`, map[string]any{
			"id": m.ID, "statement": m.Statement, "embedding": toFloat64Slice(m.Embedding),
			"paperDoi": m.PaperDOI, "domain": m.Domain, "reviewStatus": string(m.ReviewStatus), "conceptId": m.ConceptID,
		})
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "create mention", err)
	}
	return nil
}

func (r *Repository) GetMention(ctx context.Context, id string) (graph.ProblemMention, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (m:ProblemMention {id: $id}) RETURN m`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		node, _ := res.Record().Get("m")
		return recordToMention(node.(neo4j.Node)), nil
	})
	if err != nil {
		return graph.ProblemMention{}, false, apperrors.Wrap(apperrors.Internal, "get mention", err)
	}
	if out == nil {
		return graph.ProblemMention{}, false, nil
	}
	return out.(graph.ProblemMention), true, nil
}

func recordToMention(n neo4j.Node) graph.ProblemMention {
	props := n.Props
	return graph.ProblemMention{
		ID:           stringProp(props, "id"),
		Statement:    stringProp(props, "statement"),
		Embedding:    float32SliceProp(props, "embedding"),
		PaperDOI:     stringProp(props, "paper_doi"),
		Domain:       stringProp(props, "domain"),
		ReviewStatus: graph.ReviewStatus(stringProp(props, "review_status")),
		ConceptID:    stringProp(props, "concept_id"),
	}
}

func (r *Repository) SetMentionConcept(ctx context.Context, mentionID, conceptID string) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (m:ProblemMention {id: $id}) RETURN m`, map[string]any{"id": mentionID})
		if err != nil {
			return nil, err
		}
		if !check.Next(ctx) {
			return nil, apperrors.New(apperrors.NotFound, "mention not found: "+mentionID)
		}

		_, err = tx.Run(ctx, `
			MATCH (m:ProblemMention {id: $mentionId})
			SET m.concept_id = $conceptId, m.review_status = $resolved
			WITH m
			MATCH (c:ProblemConcept {id: $conceptId})
			SET c.mention_count = coalesce(c.mention_count, 0) + 1
			MERGE (m)-[:INSTANCE_OF]->(c)
		`, map[string]any{"mentionId": mentionID, "conceptId": conceptID, "resolved": string(graph.ReviewResolved)})
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "set mention concept", err)
	}
	return nil
}

func (r *Repository) SetMentionReviewStatus(ctx context.Context, mentionID string, status graph.ReviewStatus) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (m:ProblemMention {id: $id}) RETURN m`, map[string]any{"id": mentionID})
		if err != nil {
			return nil, err
		}
		if !check.Next(ctx) {
			return nil, apperrors.New(apperrors.NotFound, "mention not found: "+mentionID)
		}
		_, err = tx.Run(ctx, `MATCH (m:ProblemMention {id: $id}) SET m.review_status = $status`,
			map[string]any{"id": mentionID, "status": string(status)})
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "set mention review status", err)
	}
	return nil
}

// --- Concepts ---

func (r *Repository) CreateConcept(ctx context.Context, c graph.ProblemConcept) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (c:ProblemConcept {id: $id})
			SET c.canonical_statement = $statement, c.domain = $domain, c.embedding = $embedding,
			    c.mention_count = $mentionCount, c.status = $status
		`, map[string]any{
			"id": c.ID, "statement": c.CanonicalStatement, "domain": c.Domain,
			"embedding": toFloat64Slice(c.Embedding), "mentionCount": c.MentionCount, "status": string(c.Status),
		})
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "create concept", err)
	}
	return nil
}

func (r *Repository) GetConcept(ctx context.Context, id string) (graph.ProblemConcept, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (c:ProblemConcept {id: $id}) RETURN c`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		node, _ := res.Record().Get("c")
		return recordToConcept(node.(neo4j.Node)), nil
	})
	if err != nil {
		return graph.ProblemConcept{}, false, apperrors.Wrap(apperrors.Internal, "get concept", err)
	}
	if out == nil {
		return graph.ProblemConcept{}, false, nil
	}
	return out.(graph.ProblemConcept), true, nil
}

// SearchConceptsByEmbedding queries the cosine-similarity vector index
// declared by internal/graph/schema on ProblemConcept.embedding.
func (r *Repository) SearchConceptsByEmbedding(ctx context.Context, embedding []float32, topK int) ([]graph.ProblemConcept, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	if topK <= 0 {
		topK = 10
	}

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.vector.queryNodes('problem_concept_embedding', $topK, $embedding)
			YIELD node, score
			RETURN node, score
			ORDER BY score DESC
		`, map[string]any{"topK": int64(topK), "embedding": toFloat64Slice(embedding)})
		if err != nil {
			return nil, err
		}
		var concepts []graph.ProblemConcept
		for res.Next(ctx) {
			node, _ := res.Record().Get("node")
			concepts = append(concepts, recordToConcept(node.(neo4j.Node)))
		}
		return concepts, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "search concepts by embedding", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]graph.ProblemConcept), nil
}

func recordToConcept(n neo4j.Node) graph.ProblemConcept {
	props := n.Props
	return graph.ProblemConcept{
		ID:                 stringProp(props, "id"),
		CanonicalStatement: stringProp(props, "canonical_statement"),
		Domain:             stringProp(props, "domain"),
		Embedding:          float32SliceProp(props, "embedding"),
		MentionCount:       intProp(props, "mention_count"),
		Status:             graph.ConceptStatus(stringProp(props, "status")),
	}
}

// --- Review queue ---

func (r *Repository) CreatePendingReview(ctx context.Context, rev graph.PendingReview) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (pr:PendingReview {mention_id: $mentionId}) RETURN pr`,
			map[string]any{"mentionId": rev.MentionID})
		if err != nil {
			return nil, err
		}
		if check.Next(ctx) {
			return nil, nil // enqueue is idempotent on mention_id
		}

		candidateIDs := make([]string, len(rev.SuggestedConcepts))
		candidateSims := make([]float64, len(rev.SuggestedConcepts))
		candidateScores := make([]float64, len(rev.SuggestedConcepts))
		for i, c := range rev.SuggestedConcepts {
			candidateIDs[i] = c.ConceptID
			candidateSims[i] = c.Similarity
			candidateScores[i] = c.FinalScore
		}

		_, err = tx.Run(ctx, `
			CREATE (pr:PendingReview {
				id: $id, mention_id: $mentionId, priority: $priority, escalation_reason: $escalationReason,
				sla_deadline: $slaDeadline,
				candidate_concept_ids: $candidateIds, candidate_similarities: $candidateSims, candidate_final_scores: $candidateScores
			})
		`, map[string]any{
			"id": rev.ID, "mentionId": rev.MentionID, "priority": string(rev.Priority),
			"escalationReason": string(rev.EscalationReason), "slaDeadline": toNeoTime(rev.SLADeadline),
			"candidateIds": candidateIDs, "candidateSims": candidateSims, "candidateScores": candidateScores,
		})
		return nil, err
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "create pending review", err)
	}
	return nil
}

func (r *Repository) GetPendingReview(ctx context.Context, id string) (graph.PendingReview, bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (pr:PendingReview {mention_id: $id}) RETURN pr`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		node, _ := res.Record().Get("pr")
		return recordToPendingReview(node.(neo4j.Node)), nil
	})
	if err != nil {
		return graph.PendingReview{}, false, apperrors.Wrap(apperrors.Internal, "get pending review", err)
	}
	if out == nil {
		return graph.PendingReview{}, false, nil
	}
	return out.(graph.PendingReview), true, nil
}

func (r *Repository) UpdatePendingReview(ctx context.Context, rev graph.PendingReview) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (pr:PendingReview {id: $id}) RETURN pr`, map[string]any{"id": rev.ID})
		if err != nil {
			return nil, err
		}
		if !check.Next(ctx) {
			return nil, apperrors.New(apperrors.NotFound, "pending review not found: "+rev.ID)
		}
		_, err = tx.Run(ctx, `
			MATCH (pr:PendingReview {id: $id})
			SET pr.priority = $priority, pr.escalation_reason = $escalationReason, pr.sla_deadline = $slaDeadline
		`, map[string]any{
			"id": rev.ID, "priority": string(rev.Priority),
			"escalationReason": string(rev.EscalationReason), "slaDeadline": toNeoTime(rev.SLADeadline),
		})
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "update pending review", err)
	}
	return nil
}

func (r *Repository) ResolvePendingReview(ctx context.Context, id string, res graph.Resolution) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx, `MATCH (pr:PendingReview {mention_id: $id}) RETURN pr`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !check.Next(ctx) {
			return nil, apperrors.New(apperrors.NotFound, "pending review not found: "+id)
		}
		_, err = tx.Run(ctx, `
			MATCH (pr:PendingReview {mention_id: $id})
			SET pr.resolution_decision = $decision, pr.resolution_concept_id = $conceptId,
			    pr.resolution_reviewer = $reviewer, pr.resolution_resolved_at = $resolvedAt
		`, map[string]any{
			"id": id, "decision": res.Decision, "conceptId": res.ConceptID,
			"reviewer": res.Reviewer, "resolvedAt": toNeoTime(res.ResolvedAt),
		})
		return nil, err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "resolve pending review", err)
	}
	return nil
}

func recordToPendingReview(n neo4j.Node) graph.PendingReview {
	props := n.Props
	ids := stringSliceProp(props, "candidate_concept_ids")
	sims := float64SliceProp(props, "candidate_similarities")
	scores := float64SliceProp(props, "candidate_final_scores")
	candidates := make([]graph.CandidateConcept, len(ids))
	for i, id := range ids {
		c := graph.CandidateConcept{ConceptID: id}
		if i < len(sims) {
			c.Similarity = sims[i]
		}
		if i < len(scores) {
			c.FinalScore = scores[i]
		}
		candidates[i] = c
	}

	rev := graph.PendingReview{
		ID:                stringProp(props, "id"),
		MentionID:         stringProp(props, "mention_id"),
		SuggestedConcepts: candidates,
		Priority:          graph.ReviewPriority(stringProp(props, "priority")),
		EscalationReason:  graph.EscalationReason(stringProp(props, "escalation_reason")),
		SLADeadline:       timeProp(props, "sla_deadline"),
	}

	if decision := stringProp(props, "resolution_decision"); decision != "" {
		rev.Resolution = &graph.Resolution{
			Decision:   decision,
			ConceptID:  stringProp(props, "resolution_concept_id"),
			Reviewer:   stringProp(props, "resolution_reviewer"),
			ResolvedAt: timeProp(props, "resolution_resolved_at"),
		}
	}
	return rev
}

// --- Relations ---

// relationLabels maps each RelationKind to its fixed Cypher relationship
// type. Relationship types cannot be parameterized in Cypher, so the label
// is chosen from this closed set rather than interpolated from user input.
var relationLabels = map[graph.RelationKind]string{
	graph.RelExtractedFrom: "EXTRACTED_FROM",
	graph.RelAuthoredBy:    "AUTHORED_BY",
	graph.RelInstanceOf:    "INSTANCE_OF",
	graph.RelCites:         "CITES",
	graph.RelExtends:       "EXTENDS",
	graph.RelContradicts:   "CONTRADICTS",
	graph.RelDependsOn:     "DEPENDS_ON",
	graph.RelReframes:      "REFRAMES",
	graph.RelInDomain:      "IN_DOMAIN",
}

func (r *Repository) CreateRelation(ctx context.Context, rel graph.Relation) error {
	label, ok := relationLabels[rel.Kind]
	if !ok {
		return apperrors.New(apperrors.Validation, "unknown relation kind: "+string(rel.Kind))
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (from {id: $fromId})
		MATCH (to {id: $toId})
		MERGE (from)-[rel:%s]->(to)
		SET rel.confidence = $confidence, rel.sub_kind = $subKind, rel.position = $position
	`, label)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"fromId": rel.FromID, "toId": rel.ToID, "confidence": rel.Confidence,
			"subKind": string(rel.SubKind), "position": rel.Position,
		})
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "create relation", err)
	}
	return nil
}

func (r *Repository) CitesOneHop(ctx context.Context, paperDOI string) ([]string, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (from:Paper {doi: $doi})-[:CITES]->(to:Paper)
			RETURN to.doi as doi
		`, map[string]any{"doi": paperDOI})
		if err != nil {
			return nil, err
		}
		var out []string
		for res.Next(ctx) {
			doi, _ := res.Record().Get("doi")
			if s, ok := doi.(string); ok {
				out = append(out, s)
			}
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "cites one hop", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]string), nil
}

func (r *Repository) MentionsInstanceOf(ctx context.Context, conceptID string) ([]string, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (m:ProblemMention)-[:INSTANCE_OF]->(c:ProblemConcept {id: $conceptId})
			RETURN m.id as id
		`, map[string]any{"conceptId": conceptID})
		if err != nil {
			return nil, err
		}
		var out []string
		for res.Next(ctx) {
			id, _ := res.Record().Get("id")
			if s, ok := id.(string); ok {
				out = append(out, s)
			}
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "mentions instance of", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]string), nil
}

func (r *Repository) Neighbors(ctx context.Context, nodeID string, depth int) ([]graph.Relation, error) {
	if depth <= 0 {
		depth = 1
	}

	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n {id: $id})-[rel*1..%d]->(m)
		UNWIND rel as r
		RETURN DISTINCT type(r) as kind, startNode(r).id as fromId, endNode(r).id as toId,
		       r.confidence as confidence, r.sub_kind as subKind, r.position as position
	`, depth)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		var relations []graph.Relation
		for res.Next(ctx) {
			rec := res.Record()
			kind, _ := rec.Get("kind")
			fromID, _ := rec.Get("fromId")
			toID, _ := rec.Get("toId")
			confidence, _ := rec.Get("confidence")
			subKind, _ := rec.Get("subKind")
			position, _ := rec.Get("position")

			rel := graph.Relation{
				Kind:    graph.RelationKind(asString(kind)),
				FromID:  asString(fromID),
				ToID:    asString(toID),
				SubKind: graph.ProblemRelationSubKind(asString(subKind)),
			}
			if c, ok := confidence.(float64); ok {
				rel.Confidence = c
			}
			if p, ok := position.(int64); ok {
				rel.Position = int(p)
			}
			relations = append(relations, rel)
		}
		return relations, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "neighbors", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.([]graph.Relation), nil
}

// --- property conversion helpers ---

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func float64Prop(props map[string]any, key string) float64 {
	f, _ := props[key].(float64)
	return f
}

func stringSliceProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func float64SliceProp(props map[string]any, key string) []float64 {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

func float32SliceProp(props map[string]any, key string) []float32 {
	raw := float64SliceProp(props, key)
	if raw == nil {
		return nil
	}
	out := make([]float32, len(raw))
	for i, f := range raw {
		out[i] = float32(f)
	}
	return out
}

func timeProp(props map[string]any, key string) time.Time {
	if t, ok := props[key].(time.Time); ok {
		return t
	}
	if t, ok := props[key].(interface{ Time() time.Time }); ok {
		return t.Time()
	}
	return time.Time{}
}

func toNeoTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

func toFloat64Slice(in []float32) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	return out
}

func offsetOrZero(offset int) int64 {
	if offset < 0 {
		return 0
	}
	return int64(offset)
}

func limitOrAll(limit int) int64 {
	if limit <= 0 {
		return 1_000_000
	}
	return int64(limit)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
