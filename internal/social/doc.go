// Package social matches platform posts to tournaments.
//
// Processing runs in three stages. Extraction pulls tournament signals
// (buy-in, guarantee, event number, winner, placements) out of a post's
// text and classifies the post as a result, a promotion, or general
// chatter. Ranking scores the extracted signals against candidate games
// in a date window around the post. Commit persists the extracted data,
// creates AUTO links above the confidence threshold, and recounts link
// totals on both sides of the edge.
package social
