package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"photoshare-backend/cmd"
	"photoshare-backend/internal/config"
	"photoshare-backend/internal/ingest"
	"photoshare-backend/internal/messaging"
	"photoshare-backend/internal/records"
	"photoshare-backend/internal/storage"
	"photoshare-backend/internal/vision"
)

func main() {
	log.Println("Starting Ingestion Worker...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	objectStore, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	dynamoClient, err := records.NewDynamoClient(records.DynamoClientConfig{
		Endpoint:        cfg.DynamoEndpointURL,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
	})
	if err != nil {
		log.Fatalf("Failed to create dynamodb client: %v", err)
	}
	recordStore := records.NewDynamoStore(dynamoClient, cfg.PostsTable, cfg.TasksTable)

	classifier, err := vision.NewRekognitionClassifier(cfg.AWSRegion)
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL, cfg.NotificationsQueue)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer receiver.Close()

	pipeline := ingest.NewPipeline(objectStore, classifier, recordStore)
	worker := messaging.NewWorker(pipeline, receiver, cfg.WorkerConcurrency)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received, stopping worker...")
		cancel()
	}()

	log.Printf("Worker started with concurrency %d, consuming from queue %s", cfg.WorkerConcurrency, cfg.NotificationsQueue)
	worker.Run(ctx)

	log.Println("Worker process stopped.")
}
