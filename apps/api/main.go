package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	echoapi "github.com/fitprize/fitprize/apps/api/echo"
	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
	emailsvc "github.com/fitprize/fitprize/services/email"
	logsvc "github.com/fitprize/fitprize/services/logger"
	realtimesvc "github.com/fitprize/fitprize/services/realtime"
	"github.com/fitprize/fitprize/storage/database"
	inmemdb "github.com/fitprize/fitprize/storage/database/inmem"
	sqlxrepos "github.com/fitprize/fitprize/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up DB & repos
	var (
		usrRepo user.Repository
		repo    school.Repository
	)
	if conf.IsMemoryStore() {
		logger.Warn("using the in-memory store, data is lost on exit")
		db := inmemdb.Open()
		usrRepo, repo = inmemdb.NewUserRepository(db), inmemdb.NewSchoolRepository(db)
	} else {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		if err = database.Migrate(db.DB, "up"); err != nil {
			dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		usrRepo, repo = sqlxrepos.NewUserRepository(db), sqlxrepos.NewSchoolRepository(db)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	otps := user.NewOTPStore(conf.Auth.OTPTTL, conf.Auth.ResetTokenTTL)
	usrSvc := user.NewService(usrRepo, mailSvc, otps)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := realtimesvc.NewMetrics(reg)

	hub := realtimesvc.NewHub(metrics, logger)
	go hub.Run(ctx)

	var emitter realtime.Emitter = hub
	if client := realtimesvc.NewRedisClient(ctx, conf.Realtime.RedisAddr, logger); client != nil {
		defer func() { _ = client.Close() }()
		bridge := realtimesvc.NewRedisBridge(client, conf.Realtime.RedisChannel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error(fmt.Sprintf("redis bridge stopped: %v", err), err)
			}
		}()
		emitter = bridge
	}
	schoolSvc := school.NewService(repo, usrRepo, realtime.NewNotifier(emitter), school.WithObserver(metrics))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := newValidator()
	core.ParseEmailTemplates(conf, logger)

	// expired OTPs & reset tokens
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.Auth.PurgeSchedule, func() {
		if n := otps.Purge(); n > 0 {
			logger.Debug(fmt.Sprintf("purged %d expired password reset codes", n))
		}
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling OTP purge %q: %v", conf.Auth.PurgeSchedule, err), err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("realtime_clients", expvar.Func(func() interface{} { return hub.ClientCount() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	auth := echoapi.NewAuthenticator(conf, usrSvc, schoolSvc)
	deps := echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		SchoolSvc:  schoolSvc,
		Validate:   validate,
		Translator: translator,
		Auth:       auth,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if conf.Realtime.Enabled {
		deps.Realtime = realtimesvc.NewHandler(hub, auth.Authenticate, schoolSvc.Rooms, conf, logger)
	}
	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate, translator
}
