// Package core provides the business logic for catalog import operations.
//
// This package holds all domain logic independent of any transport or
// storage layer. It is used by the HTTP handlers, the importctl CLI and
// tests without modification.
//
// # Pipeline
//
// An import moves through a fixed sequence of stages. Each stage is a
// function of its input plus configuration (the catalog and the element
// repository):
//
//  1. [Parse] or [NewChunkReader] tokenizes delimited text; [ParseFile]
//     also reads .xlsx workbooks
//  2. [Catalog.AutoDetectMappings] proposes header-to-field mappings and
//     [Catalog.ValidateMappings] checks them
//  3. [Validator] maps and validates rows into [ImportRecord] values
//  4. [DuplicateDetector] looks up existing elements by key field
//  5. [Resolution] holds the strategy chosen per duplicate
//  6. [BuildPlan] turns records plus resolution into an [ExecutionPlan]
//  7. [Executor] runs the plan and keeps the [ImportBatch] record current
//
// [Service] wires the stages to a [BatchStore], an [ElementRepository] and
// a [TemplateStore]; [Service.RunImport] runs the whole sequence at once.
//
// # Catalog Registry
//
// Catalogs are registered at init time using [RegisterCatalog]. Each
// [Catalog] lists the target fields of one element type:
//
//	core.RegisterCatalog(core.Catalog{
//	    ElementType: "application",
//	    Label:       "Applications",
//	    KeyFields:   []string{"applicationCode", "name"},
//	    Fields: []core.TargetFieldDefinition{
//	        {Key: "name", Label: "Name", Required: true, Kind: core.FieldText},
//	    },
//	})
//
// # Batches
//
// A batch moves PENDING -> IN_PROGRESS -> COMPLETED or FAILED and never
// back. The PENDING -> IN_PROGRESS step is a compare-and-set in the store,
// so a batch executes at most once. Every row of the plan is accounted
// for: successCount + failureCount + skippedCount == totalRecords.
//
// # Error Handling
//
// Stage results carry their problems as data (ParseResult.Errors,
// MappingValidation, FieldError, DuplicateWarning, the batch error report).
// Operational failures are returned as errors wrapping the sentinels in
// errors.go. Technical errors are mapped to user-friendly messages using
// [MapError]; each category has a code for support reference:
//
//   - PARSE001-PARSE004: input and tokenizer errors
//   - MAP001-MAP006: mapping and template errors
//   - VAL001-VAL005: field validation errors
//   - DUP001-DUP002: duplicate resolution errors
//   - BATCH001-BATCH003, EXEC001-EXEC003: batch lifecycle errors
//   - DB001-DB003: repository errors
//
// # Thread Safety
//
// [Service], [MemoryStore], [MemoryTemplateStore] and [ExecutionLimiter]
// are safe for concurrent use. [Resolution] and [ChunkReader] are not.
package core
