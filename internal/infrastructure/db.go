package infrastructure

import (
	"Aporte/config"
	"Aporte/internal/domain/account"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/transaction"
	"Aporte/internal/domain/user"
	"Aporte/internal/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewDb(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Error().
			Err(err).
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.DBName).
			Msg("Falha ao conectar ao banco de dados")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error().Err(err).Msg("Falha ao obter instância do banco de dados")
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.DBName).
		Msg("Conexão com banco de dados estabelecida com sucesso")

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

func runMigrations(db *gorm.DB) error {
	logger.Info().Msg("Executando migrations...")

	entities := []interface{}{
		&user.User{},
		&account.Account{},
		&family.Family{},
		&family.Membership{},
		&goal.Goal{},
		&transaction.Transaction{},
		&contribution.Contribution{},
		&contribution.AuditEvent{},
	}

	for _, entity := range entities {
		if err := db.AutoMigrate(entity); err != nil {
			logger.Error().
				Err(err).
				Str("entity", getEntityName(entity)).
				Msg("Erro ao migrar entidade")
			return err
		}
	}

	if err := installContributionProcedure(db); err != nil {
		logger.Warn().Err(err).Msg("Aviso ao instalar a procedure de aporte; o caminho sequencial será usado")
	}

	if err := installChangeNotifyTriggers(db); err != nil {
		logger.Warn().Err(err).Msg("Aviso ao instalar os triggers de notificação de mudança")
	}

	logger.Info().Msg("Migrations executadas com sucesso!")
	return nil
}

// installContributionProcedure cria a function que grava os três efeitos do
// aporte em uma única transação: insere o registro, debita a conta com
// verificação de saldo sob lock e credita a meta. SQLSTATE P0001 com a
// mensagem insufficient_balance sinaliza saldo insuficiente.
func installContributionProcedure(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	procedure := `
		CREATE OR REPLACE FUNCTION contribute_to_goal(
			p_contribution_id varchar(26),
			p_goal_id varchar(26),
			p_account_id varchar(26),
			p_user_id varchar(26),
			p_amount decimal(15,2),
			p_note varchar(255)
		) RETURNS void AS $$
		DECLARE
			v_balance decimal(15,2);
			v_current decimal(15,2);
			v_target decimal(15,2);
			v_status varchar(20);
			v_tx_id varchar(26);
		BEGIN
			SELECT balance INTO v_balance FROM accounts
				WHERE id = p_account_id FOR UPDATE;
			IF v_balance IS NULL OR v_balance < p_amount THEN
				RAISE EXCEPTION 'insufficient_balance';
			END IF;

			SELECT current_amount, target_amount INTO v_current, v_target
				FROM goals WHERE id = p_goal_id FOR UPDATE;
			IF v_current IS NULL THEN
				RAISE EXCEPTION 'goal_not_found';
			END IF;

			v_tx_id := p_contribution_id;

			INSERT INTO transactions (id, user_id, account_id, goal_id, type, amount, description, date, created_at)
				VALUES (v_tx_id, p_user_id, p_account_id, p_goal_id, 'TRANSFER', p_amount, p_note, now(), now());

			INSERT INTO goal_contributions (id, goal_id, user_id, account_id, transaction_id, type, amount, note, created_at)
				VALUES (p_contribution_id, p_goal_id, p_user_id, p_account_id, v_tx_id, 'manual', p_amount, p_note, now());

			UPDATE accounts SET balance = balance - p_amount, updated_at = now()
				WHERE id = p_account_id;

			IF v_current + p_amount >= v_target THEN
				v_status := 'completed';
			ELSE
				v_status := 'in_progress';
			END IF;

			UPDATE goals SET current_amount = current_amount + p_amount,
				status = v_status, updated_at = now()
				WHERE id = p_goal_id;
		END;
		$$ LANGUAGE plpgsql;
	`

	_, err = sqlDB.Exec(procedure)
	return err
}

// installChangeNotifyTriggers publica mudanças de metas e aportes no canal
// goal_changes via NOTIFY; o SyncManager assina esse canal.
func installChangeNotifyTriggers(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	statements := []string{
		`
		CREATE OR REPLACE FUNCTION notify_goal_change() RETURNS trigger AS $$
		DECLARE
			v_goal_id varchar(26);
			v_user_id varchar(26);
		BEGIN
			IF TG_TABLE_NAME = 'goals' THEN
				v_goal_id := COALESCE(NEW.id, OLD.id);
				v_user_id := COALESCE(NEW.user_id, OLD.user_id);
			ELSE
				v_goal_id := COALESCE(NEW.goal_id, OLD.goal_id);
				v_user_id := COALESCE(NEW.user_id, OLD.user_id);
			END IF;
			PERFORM pg_notify('goal_changes', json_build_object(
				'table', TG_TABLE_NAME,
				'op', TG_OP,
				'goal_id', v_goal_id,
				'user_id', v_user_id
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;
		`,
		`DROP TRIGGER IF EXISTS goals_notify_change ON goals`,
		`CREATE TRIGGER goals_notify_change
			AFTER INSERT OR UPDATE OR DELETE ON goals
			FOR EACH ROW EXECUTE FUNCTION notify_goal_change()`,
		`DROP TRIGGER IF EXISTS goal_contributions_notify_change ON goal_contributions`,
		`CREATE TRIGGER goal_contributions_notify_change
			AFTER INSERT ON goal_contributions
			FOR EACH ROW EXECUTE FUNCTION notify_goal_change()`,
	}

	for _, stmt := range statements {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func getEntityName(entity interface{}) string {
	switch entity.(type) {
	case *user.User:
		return "User"
	case *account.Account:
		return "Account"
	case *family.Family:
		return "Family"
	case *family.Membership:
		return "Membership"
	case *goal.Goal:
		return "Goal"
	case *transaction.Transaction:
		return "Transaction"
	case *contribution.Contribution:
		return "Contribution"
	case *contribution.AuditEvent:
		return "AuditEvent"
	default:
		return "Unknown"
	}
}
