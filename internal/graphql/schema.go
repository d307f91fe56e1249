// Package graphql exposes the measurement activation and trial mutations
// and the owner query over GraphQL.
package graphql

import (
	"net/http"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	gqlgo "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

// Schema is the GraphQL schema. Mutations return null on success and a
// payload carrying a typed error otherwise.
const Schema = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	owner(username: String!): Owner
}

type Mutation {
	activateComponentMeasurements(input: ActivateComponentMeasurementsInput!): ActivateComponentMeasurementsPayload
	activateFlagsMeasurements(input: ActivateFlagsMeasurementsInput!): ActivateFlagsMeasurementsPayload
	startTrial(input: StartTrialInput!): StartTrialPayload
	expireTrial(input: ExpireTrialInput!): ExpireTrialPayload
}

enum TrialStatus {
	NOT_STARTED
	ONGOING
	EXPIRED
}

type Owner {
	username: String!
	service: String!
	plan: String!
	trialStatus: TrialStatus!
	trialStartDate: String
	trialEndDate: String
}

input ActivateComponentMeasurementsInput {
	owner: String!
	repoName: String!
}

input ActivateFlagsMeasurementsInput {
	owner: String!
	repoName: String!
}

input StartTrialInput {
	owner: String!
}

input ExpireTrialInput {
	owner: String!
}

type UnauthenticatedError {
	message: String!
}

type UnauthorizedError {
	message: String!
}

type NotFoundError {
	message: String!
}

type ValidationError {
	message: String!
}

union ActivateComponentMeasurementsError = UnauthenticatedError | UnauthorizedError | NotFoundError | ValidationError

union ActivateFlagsMeasurementsError = UnauthenticatedError | UnauthorizedError | NotFoundError | ValidationError

union StartTrialError = UnauthenticatedError | UnauthorizedError | NotFoundError | ValidationError

union ExpireTrialError = UnauthenticatedError | UnauthorizedError | NotFoundError | ValidationError

type ActivateComponentMeasurementsPayload {
	error: ActivateComponentMeasurementsError
}

type ActivateFlagsMeasurementsPayload {
	error: ActivateFlagsMeasurementsError
}

type StartTrialPayload {
	error: StartTrialError
}

type ExpireTrialPayload {
	error: ExpireTrialError
}
`

// NewSchema parses the schema against a resolver.
func NewSchema(store contract.Store, commands *core.RepositoryCommands) *gqlgo.Schema {
	return gqlgo.MustParseSchema(Schema, NewResolver(store, commands))
}

// NewSchemaWithResolver parses the schema against an existing resolver.
func NewSchemaWithResolver(r *Resolver) *gqlgo.Schema {
	return gqlgo.MustParseSchema(Schema, r)
}

// Handler serves POST /graphql. The current user is read from the request context.
func Handler(schema *gqlgo.Schema) http.Handler {
	return &relay.Handler{Schema: schema}
}

// formatTime renders an optional timestamp, or nil.
func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
