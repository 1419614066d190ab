// Package catalog models the product catalog consumed by the entitlement
// engine: plans made of ordered phases, each with a duration.
//
// A Provider returns the active Catalog. Two providers ship with the package:
// NewMemoryProvider for tests and embedding, and FileProvider which parses a
// YAML document of the form:
//
//	catalog:
//	  name: default
//	  effective_date: 2026-01-01
//	  plans:
//	    - name: pro-monthly
//	      product: pro
//	      phases:
//	        - name: pro-monthly-trial
//	          type: trial
//	          duration: {unit: day, number: 30}
//	        - name: pro-monthly-evergreen
//	          type: evergreen
//	          duration: {unit: unlimited}
//
// Catalogs are validated on load: plan names must match their keys, every
// plan needs at least one phase, and only the final phase may be unlimited.
package catalog
