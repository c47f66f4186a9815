package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"akademiku_backend/internals/configs"
	attendanceModel "akademiku_backend/internals/features/sessions/attendance/model"
	earningsModel "akademiku_backend/internals/features/sessions/earnings/model"
	outboxModel "akademiku_backend/internals/features/sessions/outbox/model"
	sessionModel "akademiku_backend/internals/features/sessions/session/model"
)

var DB *gorm.DB

func ConnectDB() {
	log.Println("[DB] connecting to PostgreSQL...")

	// Behind PgBouncer keep PreferSimpleProtocol=true and point host/port at the pooler.
	sslmode := getenv("DB_SSLMODE", "require")
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=akademiku&options=-c statement_timeout=3000",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
		sslmode,
	)

	db, err := Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}))
	if err != nil {
		log.Fatalf("[DB] connect failed: %v", err)
	}
	DB = db
	log.Println("[DB] connected.")

	if configs.GetEnvBool("DB_AUTO_MIGRATE", false) {
		if err := AutoMigrate(DB); err != nil {
			log.Fatalf("[DB] auto migrate failed: %v", err)
		}
		log.Println("[DB] auto migrate done.")
	}
}

// Open builds a *gorm.DB with the project defaults for any dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         configs.NewGormLogger(),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// AutoMigrate creates or updates every table owned by the session engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&sessionModel.LiveSessionModel{},
		&sessionModel.LiveSessionParticipantModel{},
		&sessionModel.AcademySettingModel{},
		&attendanceModel.MeetingAttendanceModel{},
		&earningsModel.TeacherProfileModel{},
		&earningsModel.InteractiveCourseModel{},
		&earningsModel.InteractiveCourseEnrollmentModel{},
		&earningsModel.TeacherEarningModel{},
		&outboxModel.SessionOutboxEventModel{},
	)
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("[DB] pool tune err: %v", err)
		return
	}
	// keep within the Supabase/PgBouncer connection limit
	sqlDB.SetMaxOpenConns(configs.GetEnvInt("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(configs.GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := ping(); err != nil {
			log.Printf("[DB] warm-up ping err: %v", err)
		}
	}()
}

func ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
