package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// The simulator plays a synthetic device against a running API instance:
// it opens a session, walks a loop around the start point streaming frames,
// places anchors along the way, and logs which slots are near. Useful for
// exercising the proximity gate and the round-robin slots without a phone.

type frameBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Heading   float64 `json:"heading"`
	Tracking  bool    `json:"tracking"`
}

type slotState struct {
	Occupied bool    `json:"occupied"`
	Near     bool    `json:"near"`
	Distance float64 `json:"distance_m"`
}

type frameResult struct {
	Slots []slotState `json:"slots"`
	Draws []struct {
		Slot int `json:"slot"`
	} `json:"draws"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	lat := flag.Float64("lat", 43.2630, "walk start latitude")
	lon := flag.Float64("lon", -2.9350, "walk start longitude")
	fps := flag.Int("fps", 10, "frames per second")
	placeEvery := flag.Int("place-every", 50, "place an anchor every N frames")
	loopRadius := flag.Float64("radius", 40.0, "walk loop radius in meters")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	sessionID, err := openSession(client, *apiURL)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	log.Printf("session %s opened, walking a %.0f m loop at %.4f, %.4f", sessionID, *loopRadius, *lat, *lon)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	// Degrees per meter, roughly, at this latitude
	latPerMeter := 1.0 / 111320.0
	lonPerMeter := 1.0 / (111320.0 * math.Cos(*lat*math.Pi/180))

	frame := 0
	for {
		select {
		case sig := <-quit:
			log.Printf("received signal %v, stopping simulator", sig)
			return
		case <-ticker.C:
		}
		frame++

		// One loop every ~60 seconds of walking
		angle := 2 * math.Pi * float64(frame) / float64(*fps*60)
		curLat := *lat + *loopRadius*math.Sin(angle)*latPerMeter
		curLon := *lon + *loopRadius*math.Cos(angle)*lonPerMeter

		// Drop tracking for a couple of seconds each loop to exercise the
		// skip path.
		tracking := math.Mod(angle, 2*math.Pi) > 0.2

		res, status, err := postFrame(client, *apiURL, sessionID, frameBody{
			Latitude:  curLat,
			Longitude: curLon,
			Altitude:  15.0,
			Heading:   math.Mod(angle*180/math.Pi+90, 360),
			Tracking:  tracking,
		})
		if err != nil {
			log.Printf("frame %d: %v", frame, err)
			continue
		}
		if status == http.StatusConflict {
			if frame%*fps == 0 {
				log.Printf("frame %d: skipped (tracking unavailable)", frame)
			}
			continue
		}

		if frame%*placeEvery == 0 {
			placed, err := placeAnchor(client, *apiURL, sessionID, curLat, curLon)
			switch {
			case err != nil:
				log.Printf("frame %d: place: %v", frame, err)
			case placed:
				log.Printf("frame %d: anchor placed at %.5f, %.5f", frame, curLat, curLon)
			default:
				log.Printf("frame %d: placement ignored (not tracking)", frame)
			}
		}

		// Report once a second
		if frame%*fps == 0 {
			near := 0
			for _, s := range res.Slots {
				if s.Near {
					near++
				}
			}
			log.Printf("frame %d: %d near, %d drawn", frame, near, len(res.Draws))
		}
	}
}

func openSession(client *http.Client, apiURL string) (string, error) {
	resp, err := client.Post(apiURL+"/v1/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

func postFrame(client *http.Client, apiURL, sessionID string, body frameBody) (*frameResult, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	resp, err := client.Post(apiURL+"/v1/sessions/"+sessionID+"/frames", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var res frameResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, resp.StatusCode, err
	}
	return &res, resp.StatusCode, nil
}

func placeAnchor(client *http.Client, apiURL, sessionID string, lat, lon float64) (bool, error) {
	data, _ := json.Marshal(map[string]float64{"lat": lat, "lon": lon})
	resp, err := client.Post(apiURL+"/v1/sessions/"+sessionID+"/anchors", "application/json", bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var out struct {
		Placed bool `json:"placed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Placed, nil
}
