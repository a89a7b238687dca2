// Package provider hosts the concrete adapters that bind CapMesh to vendor
// AI APIs, plus shared helpers for turning their failures into classified
// outcomes.
//
// Core goals:
//   - Keep vendor SDK surfaces out of the executor: adapters speak the
//     core.ProviderAdapter contract and nothing else
//   - Classify HTTP-level failures into the outcome taxonomy once, in one
//     place (ClassifyStatus), so retry decisions never parse error text
//   - Facilitate lightweight mocking for tests (MockAdapter) and
//     credential-free algorithmic fallbacks (Func)
//
// Vendor adapters live in subpackages (openai, anthropic) so importing one
// never pulls in the other's SDK.
package provider
