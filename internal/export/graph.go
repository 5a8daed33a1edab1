package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/orgforge/internal/okg"
)

const graphConnectTimeout = 10 * time.Second

// GraphExporter pushes the knowledge graph into Neo4j: person, team,
// project, epic and ticket nodes plus reference edges. Optional — the
// file exporters remain the canonical output.
type GraphExporter struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewGraphExporter connects to Neo4j and verifies connectivity.
func NewGraphExporter(ctx context.Context, uri, username, password, database string, logger *slog.Logger) (*GraphExporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating Neo4j driver for %s: %w", uri, err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, graphConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying Neo4j connection at %s: %w", uri, err)
	}

	logger.Info("connected to Neo4j", "uri", uri, "database", database)
	return &GraphExporter{driver: driver, database: database, logger: logger}, nil
}

// Export merges the full repository into the graph. Nodes are keyed by
// their entity IDs, so re-export is idempotent.
func (g *GraphExporter) Export(ctx context.Context, repo *okg.Repository) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, p := range repo.Persons() {
			if _, err := tx.Run(ctx,
				`MERGE (p:Person {person_id: $id})
				 SET p.name = $name, p.role = $role, p.level = $level, p.location = $location`,
				map[string]any{"id": p.PersonID, "name": p.Name, "role": p.Role, "level": string(p.Level), "location": p.Location},
			); err != nil {
				return nil, fmt.Errorf("merging person %s: %w", p.PersonID, err)
			}
			if p.TeamID != "" {
				if _, err := tx.Run(ctx,
					`MERGE (t:Team {team_id: $team})
					 WITH t MATCH (p:Person {person_id: $id})
					 MERGE (p)-[:MEMBER_OF]->(t)`,
					map[string]any{"team": p.TeamID, "id": p.PersonID},
				); err != nil {
					return nil, fmt.Errorf("linking person %s to team: %w", p.PersonID, err)
				}
			}
			if p.ManagerID != "" {
				if _, err := tx.Run(ctx,
					`MATCH (p:Person {person_id: $id})
					 MERGE (m:Person {person_id: $manager})
					 MERGE (p)-[:REPORTS_TO]->(m)`,
					map[string]any{"id": p.PersonID, "manager": p.ManagerID},
				); err != nil {
					return nil, fmt.Errorf("linking person %s to manager: %w", p.PersonID, err)
				}
			}
		}

		for _, e := range repo.Epics() {
			if _, err := tx.Run(ctx,
				`MERGE (e:Epic {epic_id: $id})
				 SET e.name = $name
				 MERGE (pr:Project {project_id: $project})
				 MERGE (e)-[:PART_OF]->(pr)`,
				map[string]any{"id": e.EpicID, "name": e.Name, "project": e.ProjectID},
			); err != nil {
				return nil, fmt.Errorf("merging epic %s: %w", e.EpicID, err)
			}
		}

		for _, t := range repo.Tickets() {
			if _, err := tx.Run(ctx,
				`MERGE (t:Ticket {ticket_id: $id})
				 SET t.type = $type, t.title = $title, t.priority = $priority, t.status = $status`,
				map[string]any{"id": t.TicketID, "type": string(t.Type), "title": t.Title, "priority": string(t.Priority), "status": string(t.CurrentStatus())},
			); err != nil {
				return nil, fmt.Errorf("merging ticket %s: %w", t.TicketID, err)
			}
			if _, err := tx.Run(ctx,
				`MATCH (t:Ticket {ticket_id: $id})
				 MERGE (a:Person {person_id: $assignee})
				 MERGE (r:Person {person_id: $reporter})
				 MERGE (t)-[:ASSIGNED_TO]->(a)
				 MERGE (t)-[:REPORTED_BY]->(r)`,
				map[string]any{"id": t.TicketID, "assignee": t.AssigneeID, "reporter": t.ReporterID},
			); err != nil {
				return nil, fmt.Errorf("linking ticket %s people: %w", t.TicketID, err)
			}
			if t.EpicID != "" {
				if _, err := tx.Run(ctx,
					`MATCH (t:Ticket {ticket_id: $id})
					 MERGE (e:Epic {epic_id: $epic})
					 MERGE (t)-[:BELONGS_TO]->(e)`,
					map[string]any{"id": t.TicketID, "epic": t.EpicID},
				); err != nil {
					return nil, fmt.Errorf("linking ticket %s to epic: %w", t.TicketID, err)
				}
			}
		}

		for _, personID := range repo.MailboxOwners() {
			for _, m := range repo.GetPersonMail(personID) {
				for _, ticketID := range m.Refs.TicketIDs {
					if _, err := tx.Run(ctx,
						`MERGE (p:Person {person_id: $person})
						 MERGE (t:Ticket {ticket_id: $ticket})
						 MERGE (p)-[:DISCUSSED {msg_id: $msg}]->(t)`,
						map[string]any{"person": personID, "ticket": ticketID, "msg": m.MsgID},
					); err != nil {
						return nil, fmt.Errorf("linking mail %s to ticket: %w", m.MsgID, err)
					}
				}
			}
		}

		return nil, nil
	})
	if err != nil {
		return err
	}

	stats := repo.Statistics()
	g.logger.Info("graph export completed", "persons", stats.Persons, "tickets", stats.Tickets)
	return nil
}

// Close releases the driver.
func (g *GraphExporter) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
