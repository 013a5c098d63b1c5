/*

Process of translation

ELF Executable ->
	load ->
Code and Data Chunks ->
	decode ->
Intermediate Representation (ir) ->
	block ->
Basic Block Map ->
	opt ->
Simplified Block Map ->
	alloc ->
Block Map with Local Slots ->
	emit ->
C Header and Implementation

*/
package translator
