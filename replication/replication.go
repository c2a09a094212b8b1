package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog"

	"rowbridge/column"
	"rowbridge/config"
	"rowbridge/schema"
	"rowbridge/types"
)

// Sink receives converted rows grouped by qualified table name.
type Sink interface {
	Register(table string, fields []types.FieldSpec) error
	Write(table string, row *column.Row) error
	Commit(ctx context.Context) error
}

type Replicator struct {
	config          *config.Config
	dbConn          *pgx.Conn
	replicationConn *pgconn.PgConn
	sink            Sink
	schemaManager   *schema.Manager
	log             zerolog.Logger

	// Rows of a streamed transaction are held by top-level xid until its
	// stream commit or abort arrives.
	inStream  bool
	streamXid uint32
	streamed  map[uint32][]streamedRow
}

type streamedRow struct {
	xid   uint32
	table string
	row   *column.Row
}

func NewReplicator(ctx context.Context, cfg *config.Config, sink Sink, log zerolog.Logger) (*Replicator, error) {
	// Create a regular connection for querying the database
	dbConn, err := pgx.Connect(ctx, cfg.PostgresURL(false))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	r := newReplicator(schema.NewSchemaManager(dbConn), sink, log)
	r.config = cfg
	r.dbConn = dbConn

	for _, table := range cfg.Tables {
		if len(table.Columns) > 0 {
			r.schemaManager.SetColumns(table.QualifiedName(), table.Columns)
		}
		if err := r.schemaManager.InitializeSchema(ctx, table.Schema, table.Name); err != nil {
			dbConn.Close(ctx)
			return nil, fmt.Errorf("initializing schema for %s: %w", table.QualifiedName(), err)
		}
		s, _ := r.schemaManager.SchemaByName(table.QualifiedName())
		if err := sink.Register(s.QualifiedName(), s.Fields()); err != nil {
			dbConn.Close(ctx)
			return nil, fmt.Errorf("registering %s: %w", table.QualifiedName(), err)
		}
	}

	// Create a replication connection using pgconn
	replicationConn, err := pgconn.Connect(ctx, cfg.PostgresURL(true))
	if err != nil {
		dbConn.Close(ctx)
		return nil, fmt.Errorf("connecting to postgres for replication: %w", err)
	}
	r.replicationConn = replicationConn

	return r, nil
}

func newReplicator(schemaManager *schema.Manager, sink Sink, log zerolog.Logger) *Replicator {
	return &Replicator{
		sink:          sink,
		schemaManager: schemaManager,
		log:           log.With().Str("component", "replication").Logger(),
		streamed:      make(map[uint32][]streamedRow),
	}
}

func (r *Replicator) Start(ctx context.Context) error {
	defer r.dbConn.Close(context.Background())
	defer r.replicationConn.Close(context.Background())

	// Create replication slot if needed
	if err := r.createReplicationSlot(ctx); err != nil {
		return fmt.Errorf("creating replication slot: %w", err)
	}

	return r.startReplication(ctx)
}

func (r *Replicator) createReplicationSlot(ctx context.Context) error {
	_, err := pglogrepl.CreateReplicationSlot(ctx, r.replicationConn, r.config.Postgres.Slot, "pgoutput", pglogrepl.CreateReplicationSlotOptions{
		Temporary: true,
		Mode:      pglogrepl.LogicalReplication,
	})
	if err != nil {
		var pgerr *pgconn.PgError
		// 42710: duplicate_object, the slot already exists.
		if errors.As(err, &pgerr) && pgerr.Code == "42710" {
			r.log.Info().Str("slot", r.config.Postgres.Slot).Msg("reusing replication slot")
			return nil
		}
		return fmt.Errorf("error creating replication slot: %w", err)
	}
	return nil
}

func (r *Replicator) startReplication(ctx context.Context) error {
	var startLSN pglogrepl.LSN

	err := pglogrepl.StartReplication(ctx, r.replicationConn, r.config.Postgres.Slot, startLSN, pglogrepl.StartReplicationOptions{
		PluginArgs: []string{
			"proto_version '2'",
			"messages 'true'",
			"streaming 'true'",
			fmt.Sprintf("publication_names '%s'", r.config.Postgres.Publication),
		},
	})
	if err != nil {
		return fmt.Errorf("starting replication: %w", err)
	}

	r.log.Info().Str("slot", r.config.Postgres.Slot).Str("publication", r.config.Postgres.Publication).Msg("replication started")
	return r.handleReplication(ctx)
}

func (r *Replicator) handleReplication(ctx context.Context) error {
	clientXLogPos := pglogrepl.LSN(0)
	standbyMessageTimeout := time.Second * 10
	nextStandbyMessageDeadline := time.Now().Add(standbyMessageTimeout)

	for {
		if time.Now().After(nextStandbyMessageDeadline) {
			err := pglogrepl.SendStandbyStatusUpdate(ctx, r.replicationConn, pglogrepl.StandbyStatusUpdate{
				WALWritePosition: clientXLogPos,
			})
			if err != nil {
				return fmt.Errorf("SendStandbyStatusUpdate failed: %w", err)
			}
			r.log.Debug().Str("lsn", clientXLogPos.String()).Msg("sent standby status")
			nextStandbyMessageDeadline = time.Now().Add(standbyMessageTimeout)
		}

		recvCtx, cancel := context.WithDeadline(ctx, nextStandbyMessageDeadline)
		rawMsg, err := r.replicationConn.ReceiveMessage(recvCtx)
		cancel()
		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			return fmt.Errorf("ReceiveMessage failed: %w", err)
		}

		if errMsg, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return fmt.Errorf("received Postgres WAL error: %+v", errMsg)
		}

		msg, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			continue
		}
		if len(msg.Data) == 0 {
			return fmt.Errorf("empty CopyData message received")
		}

		switch msg.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(msg.Data[1:])
			if err != nil {
				return fmt.Errorf("ParsePrimaryKeepaliveMessage failed: %w", err)
			}
			if pkm.ServerWALEnd > clientXLogPos {
				clientXLogPos = pkm.ServerWALEnd
			}
			if pkm.ReplyRequested {
				nextStandbyMessageDeadline = time.Time{}
			}

		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(msg.Data[1:])
			if err != nil {
				return fmt.Errorf("ParseXLogData failed: %w", err)
			}

			logicalMsg, err := pglogrepl.ParseV2(xld.WALData, r.inStream)
			if err != nil {
				return fmt.Errorf("parsing logical replication message: %w", err)
			}
			if err := r.handleMessage(ctx, logicalMsg); err != nil {
				return err
			}

			if end := xld.WALStart + pglogrepl.LSN(len(xld.WALData)); end > clientXLogPos {
				clientXLogPos = end
			}

		default:
			return fmt.Errorf("unknown replication message type: %c", msg.Data[0])
		}
	}
}

// handleMessage applies one decoded pgoutput message to the schema manager
// and the sink.
func (r *Replicator) handleMessage(ctx context.Context, msg pglogrepl.Message) error {
	switch m := msg.(type) {
	case *pglogrepl.RelationMessageV2:
		s, err := r.schemaManager.HandleRelationMessage(m)
		if err != nil {
			return fmt.Errorf("handling relation message: %w", err)
		}
		if err := r.sink.Register(s.QualifiedName(), s.Fields()); err != nil {
			return fmt.Errorf("registering %s: %w", s.QualifiedName(), err)
		}

	case *pglogrepl.BeginMessage:
		r.log.Debug().Uint32("xid", m.Xid).Msg("begin")

	case *pglogrepl.CommitMessage:
		if err := r.sink.Commit(ctx); err != nil {
			return fmt.Errorf("committing: %w", err)
		}
		r.log.Debug().Str("lsn", m.CommitLSN.String()).Msg("commit")

	case *pglogrepl.InsertMessageV2:
		if err := r.writeTuple(m.Xid, m.RelationID, m.Tuple); err != nil {
			return fmt.Errorf("writing insert: %w", err)
		}

	case *pglogrepl.UpdateMessageV2:
		if err := r.writeTuple(m.Xid, m.RelationID, m.NewTuple); err != nil {
			return fmt.Errorf("writing update: %w", err)
		}

	case *pglogrepl.DeleteMessageV2:
		s, err := r.schemaManager.GetSchema(m.RelationID)
		if err != nil {
			return fmt.Errorf("writing delete: %w", err)
		}
		r.log.Warn().Str("table", s.QualifiedName()).Uint32("xid", m.Xid).Msg("skipping delete")

	case *pglogrepl.StreamStartMessageV2:
		r.inStream = true
		r.streamXid = m.Xid
	case *pglogrepl.StreamStopMessageV2:
		r.inStream = false
	case *pglogrepl.StreamCommitMessageV2:
		rows := r.streamed[m.Xid]
		delete(r.streamed, m.Xid)
		for _, sr := range rows {
			if err := r.sink.Write(sr.table, sr.row); err != nil {
				return fmt.Errorf("writing streamed row: %w", err)
			}
		}
		if err := r.sink.Commit(ctx); err != nil {
			return fmt.Errorf("committing stream: %w", err)
		}
		r.log.Debug().Uint32("xid", m.Xid).Int("rows", len(rows)).Msg("stream commit")
	case *pglogrepl.StreamAbortMessageV2:
		dropped := r.abortStreamed(m.Xid, m.SubXid)
		r.log.Warn().Uint32("xid", m.Xid).Uint32("subxid", m.SubXid).Int("dropped", dropped).Msg("stream aborted")
	default:
		r.log.Debug().Str("type", msg.Type().String()).Msg("ignoring message")
	}
	return nil
}

// abortStreamed drops the held rows of xid, or only those written by subxid
// when a subtransaction aborts.
func (r *Replicator) abortStreamed(xid, subxid uint32) int {
	rows := r.streamed[xid]
	if subxid == xid || subxid == 0 {
		delete(r.streamed, xid)
		return len(rows)
	}
	kept := rows[:0]
	for _, sr := range rows {
		if sr.xid != subxid {
			kept = append(kept, sr)
		}
	}
	r.streamed[xid] = kept
	return len(rows) - len(kept)
}

func (r *Replicator) writeTuple(xid, relationID uint32, tuple *pglogrepl.TupleData) error {
	s, err := r.schemaManager.GetSchema(relationID)
	if err != nil {
		return err
	}
	c, err := r.schemaManager.Converter(relationID)
	if err != nil {
		return err
	}

	rec, err := TupleToRecord(tuple)
	if err != nil {
		return fmt.Errorf("%s: %w", s.QualifiedName(), err)
	}
	row, err := c.ToInternal(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", s.QualifiedName(), err)
	}
	if r.inStream {
		r.streamed[r.streamXid] = append(r.streamed[r.streamXid], streamedRow{xid: xid, table: s.QualifiedName(), row: row})
		return nil
	}
	return r.sink.Write(s.QualifiedName(), row)
}
