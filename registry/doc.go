// Package registry holds the validated, immutable set of agent descriptors a
// conversation runs with. Descriptors are usually loaded from a YAML file:
//
//	agents:
//	  - id: nova
//	    display_name: Nova
//	    title: Team Lead
//	    mentionable: true
//	    coordinator: true
//	  - id: ops
//	    display_name: Ops
//	    mentionable: true
//	    specialty: infrastructure, deployments, on-call
package registry
